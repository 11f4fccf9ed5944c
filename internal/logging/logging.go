package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MaxAge is how long log files are kept before PurgeOld removes them.
const MaxAge = 14 * 24 * time.Hour

type Options struct {
	Level string // "debug", "info", ... (default "info")
	Dir   string // directory for log files; empty logs to stderr
	Now   func() time.Time
}

// New builds the process logger. Logs go to a fresh file in opts.Dir; when
// that file cannot be created the logger falls back to stderr.
func New(opts Options) (*zap.Logger, func() error, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("parse log level: %w", err)
		}
		level.SetLevel(parsed)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var fileErr error
	if opts.Dir != "" {
		file, err := openLogFile(opts.Dir, now())
		if err == nil {
			core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), level)
			logger := zap.New(core, zap.AddCaller())
			logger.Info("logger initialized", zap.Stringer("level", level.Level()), zap.String("file", file.Name()))
			return logger, closer(logger, file), nil
		}
		fileErr = err
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level)
	logger := zap.New(core)
	if fileErr != nil {
		logger.Warn("failed to create log file, using terminal instead", zap.Error(fileErr))
	}
	return logger, func() error { return ignoreSyncErr(logger.Sync()) }, nil
}

func openLogFile(dir string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := fmt.Sprintf("log.%s.txt", now.UTC().Format("2006-01-02_15-04-05.000"))
	return os.Create(filepath.Join(dir, name))
}

func closer(logger *zap.Logger, file *os.File) func() error {
	return func() error {
		return multierr.Append(ignoreSyncErr(logger.Sync()), file.Close())
	}
}

// stderr cannot be synced on some terminals
func ignoreSyncErr(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return nil
	}
	return err
}

// PurgeOld removes regular files in dir last modified more than maxAge
// before now. It keeps going past individual failures and returns them combined.
func PurgeOld(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read log dir: %w", err)
	}

	removed := 0
	var errs error
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		removed++
	}
	return removed, errs
}
