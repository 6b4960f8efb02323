package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger. Colours are used only when out is a terminal.
func NewLogger(level string, out *os.File) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: !isatty.IsTerminal(out.Fd()),
	})
	return logger, nil
}

// TeeToFile mirrors logger output into dir/name. The returned file must be closed by the caller.
func TeeToFile(logger *logrus.Logger, dir, name string) (*os.File, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger.SetOutput(io.MultiWriter(logger.Out, file))
	if f, ok := logger.Formatter.(*logrus.TextFormatter); ok {
		f.DisableColors = true
	}
	return file, nil
}

// DiscardLogger is used by tests and library callers that do not care about output.
func DiscardLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
