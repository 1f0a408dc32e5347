package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gentoo/sandbox/config"
	"github.com/gentoo/sandbox/telemetry"
)

// logLevel parses level, falling back to debug for interactive sessions
// and info when a program was named.
func logLevel(level string, interactive bool) slog.Level {
	switch strings.ToLower(level) {
	case "error":
		return slog.LevelError
	case "warn":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	}
	if interactive {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// setupLogging creates a slog logger for cfg. The returned func flushes
// and closes whatever the logger writes to.
func setupLogging(ctx context.Context, cfg config.AppConfig) (*slog.Logger, func(), error) {
	level := logLevel(cfg.LogLevel, cfg.Run.Interactive())
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var logTarget io.Writer = os.Stderr
	if cfg.LogDir != "" {
		logFile, err := createLogFile(cfg.LogDir)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = logFile.Close() })
		logTarget = logFile
	}

	var handler slog.Handler = slog.NewTextHandler(logTarget, &slog.HandlerOptions{
		Level: level,
	})

	if cfg.OTLPEndpoint != "" {
		provider, err := telemetry.NewProvider(ctx, cfg.OTLPEndpoint)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(ctx)
		})
		handler = telemetry.Fanout{handler, telemetry.NewHandler(provider.Logger("sandbox"), level)}
	}

	return slog.New(handler), closeAll, nil
}

func createLogFile(logDir string) (*os.File, error) {
	// Set up the logging directory if it doesn't exist yet
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not set up log dir %s: %v", logDir, err)
	}

	// Timestamp and pid avoid clashes between concurrent sandboxes
	logFilePath := fmt.Sprintf("sandbox-%s-%d.log",
		time.Now().Format("2006-01-02_15-04-05"),
		os.Getpid())

	logFile, err := os.Create(filepath.Join(logDir, logFilePath))
	if err != nil {
		return nil, fmt.Errorf("could not create log file %s: %v", logFilePath, err)
	}
	return logFile, nil
}
