package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lakshmanmandapati/tensora/internal/config"
	"github.com/lakshmanmandapati/tensora/internal/ui"
)

func main() {
	logger, logFile := newLogger()
	if logFile != nil {
		defer logFile.Close()
	}

	cfgPath, err := config.Path()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	p := ui.NewProgram(cfg, logger)

	done := make(chan struct{})
	defer close(done)
	go func() {
		if err := cfg.Watch(done, func(s config.Settings) {
			p.Send(ui.SettingsChangedMsg{Settings: s})
		}); err != nil {
			logger.Warn("config watcher unavailable", "error", err)
		}
	}()

	finalModel, err := p.Run()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if m, ok := finalModel.(*ui.Model); ok {
		if m.DB != nil {
			_ = m.DB.Close()
		}
	}
}

// newLogger writes structured logs next to the config file so they never
// corrupt the terminal UI. Falls back to a no-op logger if the directory
// cannot be created.
func newLogger() (*slog.Logger, *os.File) {
	cfgPath, err := config.Path()
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	}
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	}
	f, err := os.OpenFile(filepath.Join(dir, "tensora.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})), f
}
