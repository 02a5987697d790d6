// Package logging routes the standard logger to stdout and, optionally, a
// size-rotated log file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/wenwu/saas-platform/trialapp-service/internal/config"
)

// Setup points the standard logger and returned writer at stdout plus the
// configured log file. The returned closer flushes the file; it is a no-op
// when no file is configured.
func Setup(cfg config.LogConfig) (io.Writer, io.Closer, error) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if cfg.File == "" {
		log.SetOutput(os.Stdout)
		return os.Stdout, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	out := io.MultiWriter(os.Stdout, fileWriter)
	log.SetOutput(out)
	return out, fileWriter, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
