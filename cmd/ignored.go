package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/razvandimescu/peekvfs/internal/vfs"
)

var ignoredCmd = &cobra.Command{
	Use:   "ignored [directory]",
	Short: "Show all excluded entries of a directory mount",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		checkDir := "."
		if len(args) > 0 {
			checkDir = args[0]
		}
		if absPath, err := filepath.Abs(checkDir); err == nil {
			checkDir = absPath
		}
		if info, err := os.Stat(checkDir); err == nil && !info.IsDir() {
			checkDir = filepath.Dir(checkDir)
		}
		printIgnored(cmd.OutOrStdout(), checkDir)
		return nil
	},
}

func printIgnored(w io.Writer, dir string) {
	fmt.Fprintln(w, "Hardcoded exclusions:")
	fmt.Fprintln(w, "  .* (hidden entries)")
	for _, name := range vfs.HardcodedExclusions {
		fmt.Fprintf(w, "  %s\n", name)
	}

	if patterns := vfs.ReadIgnoreFile(dir); len(patterns) > 0 {
		fmt.Fprintf(w, "\nCustom exclusions (%s in %s):\n", vfs.IgnoreFileName, dir)
		for _, p := range patterns {
			fmt.Fprintf(w, "  %s\n", p)
		}
	} else {
		fmt.Fprintf(w, "\nNo %s file found in %s\n", vfs.IgnoreFileName, dir)
	}
}

func init() {
	rootCmd.AddCommand(ignoredCmd)
}
