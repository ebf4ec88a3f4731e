package main

import (
	"os"

	"github.com/razvandimescu/peekvfs/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
