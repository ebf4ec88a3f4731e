package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/razvandimescu/peekvfs/internal/vfs"
)

var importIgnore []string

var importCmd = &cobra.Command{
	Use:   "import <directory> <database>",
	Short: "Copy a directory into a SQLite mount",
	Long: `Imports every visible file below a directory into a SQLite database that
can then be served as a mount of type "sqlite". Hidden entries, hardcoded
exclusions and the directory's ignore file are honoured.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, dbPath := args[0], args[1]

		mount, err := vfs.OpenSQLMount(dbPath, false)
		if err != nil {
			return fmt.Errorf("opening %s: %w", dbPath, err)
		}
		defer mount.Close()

		patterns := append(append([]string(nil), importIgnore...), vfs.ReadIgnoreFile(dir)...)
		n, err := mount.Import(cmd.Context(), dir, vfs.NewIgnoreRules(patterns))
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d file(s) from %s into %s\n", n, dir, dbPath)
		return nil
	},
}

func init() {
	importCmd.Flags().StringSliceVar(&importIgnore, "ignore", nil, "additional ignore patterns")
	rootCmd.AddCommand(importCmd)
}
