// Package logger builds the process logger from the logging configuration
package logger

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/amirphl/raiot-portal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger writing to stdout, a rotated file, or both.
// The returned closer releases the log file and is safe to call when no file is open.
func New(cfg config.LoggingConfig, prefix string) (*log.Logger, io.Closer, error) {
	out, closer, err := newWriter(cfg)
	if err != nil {
		return nil, nil, err
	}
	return log.New(out, prefix, log.LstdFlags|log.LUTC|log.Lmicroseconds), closer, nil
}

func newWriter(cfg config.LoggingConfig) (io.Writer, io.Closer, error) {
	switch cfg.Output {
	case "", config.LogOutputStdout:
		return os.Stdout, nopCloser{}, nil
	case config.LogOutputFile:
		rotator, err := newRotator(cfg)
		if err != nil {
			return nil, nil, err
		}
		return rotator, rotator, nil
	case config.LogOutputBoth:
		rotator, err := newRotator(cfg)
		if err != nil {
			return nil, nil, err
		}
		return io.MultiWriter(os.Stdout, rotator), rotator, nil
	default:
		return nil, nil, fmt.Errorf("unsupported log output %q", cfg.Output)
	}
}

func newRotator(cfg config.LoggingConfig) (*lumberjack.Logger, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("log file path is required for output %q", cfg.Output)
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  false,
	}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
