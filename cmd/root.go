package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/razvandimescu/peekvfs/internal/config"
	"github.com/razvandimescu/peekvfs/internal/markup"
	"github.com/razvandimescu/peekvfs/internal/session"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "peekvfs",
	Short: "Browse markdown documents across virtual file systems",
	Long: `peekvfs renders markdown documents from directory and SQLite mounts in
the browser. Relative links navigate between documents, images are served
from their mount, and an optional editor previews edits live.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultFile, "config file path")
}

// loadConfig loads and validates the configuration file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func markupOptions(cfg *config.Config) markup.Options {
	return markup.Options{
		HandleLinks:    cfg.HandleLinks,
		HighlightCode:  cfg.HighlightCode,
		HighlightStyle: cfg.HighlightStyle,
		StrictLinks:    cfg.StrictLinks,
	}
}

func sessionOptions(cfg *config.Config) session.Options {
	return session.Options{
		Markup:      markupOptions(cfg),
		IndexFile:   cfg.IndexFile,
		StartFile:   cfg.StartFile,
		Editor:      cfg.Editor,
		EventBuffer: cfg.EventBuffer,
		Watch:       cfg.Watch,
	}
}
