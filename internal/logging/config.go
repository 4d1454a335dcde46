package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Config selects the level, format and destination of a logger.
type Config struct {
	// Level is one of debug, info, warn, error or fatal
	Level string
	// Format is json or text ("console" is accepted for text)
	Format string
	// Output is stdout, stderr, discard or a file path opened for append
	Output string
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "json",
		Output: "stderr",
	}
}

// NewLogger builds a logger from cfg. A nil cfg uses DefaultConfig.
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var text bool
	switch strings.ToLower(cfg.Format) {
	case "json", "":
	case "text", "console":
		text = true
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	output, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	if text {
		return NewText(level, output), nil
	}
	return New(level, output), nil
}

// ParseLevel maps a case-insensitive level name to its LogLevel. An empty
// name is info.
func ParseLevel(name string) (LogLevel, error) {
	if name == "" {
		return InfoLevel, nil
	}
	level := LogLevel(strings.ToUpper(name))
	if _, ok := levelRank[level]; !ok {
		return "", fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "stderr", "":
		return os.Stderr, nil
	case "discard":
		return io.Discard, nil
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log output: %w", err)
	}
	return file, nil
}
