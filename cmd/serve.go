package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/razvandimescu/peekvfs/internal/config"
	"github.com/razvandimescu/peekvfs/internal/server"
	"github.com/razvandimescu/peekvfs/internal/session"
)

var (
	servePort      int
	serveNoBrowser bool
	serveNoEditor  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [file|directory]",
	Short: "Serve the configured mounts in the browser",
	Long: `Starts the peekvfs server. Without arguments the mounts of the config
file are served. A directory argument replaces them with a single "docs"
mount of that directory; a file argument mounts its directory and opens it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if len(args) == 1 {
			if err := applyTarget(cfg, args[0]); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}
		if serveNoBrowser {
			cfg.OpenBrowser = false
		}
		if serveNoEditor {
			cfg.Editor = false
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		reg, err := cfg.OpenRegistry()
		if err != nil {
			return err
		}
		defer reg.Close()

		sessions := session.NewManager(reg, sessionOptions(cfg))
		srv := server.New(server.Config{
			Port:           cfg.Port,
			AllowAll:       cfg.AllowAllOrigins,
			HighlightStyle: cfg.HighlightStyle,
			SessionTTL:     cfg.SessionTTL,
		}, sessions, reg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			log.Println("Shutting down gracefully...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("Server shutdown error: %v", err)
			}
		}()

		url := fmt.Sprintf("http://localhost:%d", cfg.Port)
		fmt.Printf("peekvfs at %s\n", url)
		for _, m := range cfg.Mounts {
			fmt.Printf("  %s: %s (%s)\n", m.Name, m.Path, m.Type)
		}
		fmt.Println("Press Ctrl+C to quit")

		if cfg.OpenBrowser {
			go func() {
				time.Sleep(500 * time.Millisecond)
				openURL(url)
			}()
		}

		if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// applyTarget replaces the configured mounts with the directory of target.
// A file target becomes the start file.
func applyTarget(cfg *config.Config, target string) error {
	absPath, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("path not found: %s", target)
	}
	if err != nil {
		return fmt.Errorf("accessing path: %w", err)
	}

	dir := absPath
	if !info.IsDir() {
		dir = filepath.Dir(absPath)
		cfg.StartFile = "docs:" + filepath.Base(absPath)
	} else {
		cfg.StartFile = "docs:"
	}
	cfg.Mounts = []config.MountConfig{{Name: "docs", Type: config.MountDir, Path: dir}}
	return nil
}

func openURL(url string) {
	var cmd string
	var args []string

	switch {
	case fileExists("/usr/bin/open"): // macOS
		cmd = "open"
		args = []string{url}
	case fileExists("/usr/bin/xdg-open"): // Linux
		cmd = "xdg-open"
		args = []string{url}
	default: // Windows
		cmd = "cmd"
		args = []string{"/c", "start", url}
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		log.Printf("Failed to open URL %s: %v", url, err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", config.DefaultPort, "Port to serve on")
	serveCmd.Flags().BoolVar(&serveNoBrowser, "no-browser", false, "Do not open the browser")
	serveCmd.Flags().BoolVar(&serveNoEditor, "no-editor", false, "Disable the editor panel")
	rootCmd.AddCommand(serveCmd)
}
