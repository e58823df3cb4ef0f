package config

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/simp-lee/logger"
)

var (
	logLevels = map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	logFormats = map[string]logger.OutputFormat{
		"text": logger.FormatText,
		"json": logger.FormatJSON,
	}
)

// SetupLogger builds the process logger from cfg and installs it as the slog
// default. Callers own the returned logger and must Close it.
//
// Unknown levels mean info and unknown formats mean the custom console
// layout. Color defaults to on. File output with rotation is added only when
// FilePath is set.
func SetupLogger(cfg *LogConfig) (*logger.Logger, error) {
	if cfg == nil {
		return nil, errors.New("log config is nil")
	}

	format := parseFormat(cfg.Format)
	color := true
	if cfg.Color != nil {
		color = *cfg.Color
	}

	opts := []logger.Option{
		logger.WithLevel(parseLevel(cfg.Level)),
		logger.WithMiddleware(logger.ContextMiddleware()),
		logger.WithConsoleFormat(format),
		logger.WithConsoleColor(color),
	}
	opts = append(opts, fileOptions(cfg, format)...)

	log, err := logger.New(opts...)
	if err != nil {
		return nil, err
	}
	log.SetDefault()
	return log, nil
}

func fileOptions(cfg *LogConfig, format logger.OutputFormat) []logger.Option {
	if cfg.FilePath == "" {
		return nil
	}
	opts := []logger.Option{
		logger.WithFilePath(cfg.FilePath),
		logger.WithFileFormat(format),
	}
	if cfg.MaxSizeMB > 0 {
		opts = append(opts, logger.WithMaxSizeMB(cfg.MaxSizeMB))
	}
	if cfg.RetentionDays > 0 {
		opts = append(opts, logger.WithRetentionDays(cfg.RetentionDays))
	}
	if cfg.MaxBackups > 0 {
		opts = append(opts, logger.WithMaxBackups(cfg.MaxBackups))
	}
	if cfg.CompressRotated != nil {
		opts = append(opts, logger.WithCompressRotated(*cfg.CompressRotated))
	}
	return opts
}

// parseLevel maps a level name to slog.Level, defaulting to info.
func parseLevel(s string) slog.Level {
	if l, ok := logLevels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return slog.LevelInfo
}

func parseFormat(s string) logger.OutputFormat {
	if f, ok := logFormats[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f
	}
	return logger.FormatCustom
}
