package cli

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ppiankov/hedgehog/internal/config"
)

func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// logCloser is the file opened for --log-file; closed after the command.
var logCloser io.Closer

// setupLogging installs the default stderr logger, or the rotating file
// logger when --log-file is set.
func setupLogging(stderr io.Writer) {
	if logFile != "" {
		logCloser = useLogFile(logFile, nil)
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel(),
	})))
}

// closeLogging closes the --log-file writer and falls back to stderr.
func closeLogging(stderr io.Writer) {
	if logCloser == nil {
		return
	}
	_ = logCloser.Close()
	logCloser = nil
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel(),
	})))
}

// useLogFile redirects the default logger to a rotating file at path and
// returns the file so the caller can close it.
func useLogFile(path string, lc *config.LogConfig) io.Closer {
	if dir := filepath.Dir(path); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	w := rotatingWriter(path, lc)
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel(),
	})))
	return w
}

func rotatingWriter(path string, lc *config.LogConfig) *lumberjack.Logger {
	if lc == nil {
		lc = &config.LogConfig{}
	}
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
		Compress:   lc.Compress,
	}
	if w.MaxSize <= 0 {
		w.MaxSize = config.DefaultLogMaxSizeMB
	}
	if w.MaxBackups <= 0 {
		w.MaxBackups = config.DefaultLogBackups
	}
	return w
}

// resolveLogFile picks the log destination for commands that own the
// terminal: the flag, then the settings file, then a file in the data dir.
func resolveLogFile(s *config.Settings) string {
	switch {
	case logFile != "":
		return logFile
	case s.LogFile() != "":
		return s.LogFile()
	default:
		return filepath.Join(s.DataDir, "hedgehog.log")
	}
}
