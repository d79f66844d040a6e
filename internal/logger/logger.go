package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Console levels. Messages carry their own "[LEVEL] " prefix and trailing newline,
// the way every caller in cmd/ and internal/ writes them.
var (
	infoColor  = color.New(color.FgGreen)
	warnColor  = color.New(color.FgHiMagenta)
	errorColor = color.New(color.FgRed)
	debugColor = color.New(color.FgCyan)
)

var (
	mu      sync.Mutex
	out     io.Writer = color.Output
	debugOn bool
	file    *logrus.Entry
)

// Config controls console verbosity and the optional rotating file log.
type Config struct {
	Debug bool
	// Quiet discards console output; used when a command prints JSON instead.
	Quiet bool
	// LogDir enables the file log when non-empty.
	LogDir string
	RunID  string
}

// Init configures the package-level loggers. A file log that cannot be opened
// is reported on the console and otherwise ignored.
func Init(cfg Config) {
	mu.Lock()
	debugOn = cfg.Debug
	if cfg.Quiet {
		out = io.Discard
	} else {
		out = color.Output
	}
	file = nil
	mu.Unlock()

	if cfg.LogDir == "" {
		return
	}
	entry, err := openFileLog(cfg.LogDir, cfg.Debug)
	if err != nil {
		Warn("[WARN] File log disabled: %v\n", err)
		return
	}
	if cfg.RunID != "" {
		entry = entry.WithField("run", cfg.RunID)
	}
	mu.Lock()
	file = entry
	mu.Unlock()
}

// SetOutput redirects console output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Info logs progress in green.
func Info(format string, a ...any) { emit(infoColor, logrus.InfoLevel, format, a...) }

// Warn logs recoverable problems in bright magenta.
func Warn(format string, a ...any) { emit(warnColor, logrus.WarnLevel, format, a...) }

// Error logs failures in red.
func Error(format string, a ...any) { emit(errorColor, logrus.ErrorLevel, format, a...) }

// Debug logs in cyan, only when debug output was enabled by Init.
func Debug(format string, a ...any) {
	mu.Lock()
	on := debugOn
	mu.Unlock()
	if !on {
		return
	}
	emit(debugColor, logrus.DebugLevel, format, a...)
}

func emit(c *color.Color, level logrus.Level, format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	_, _ = c.Fprintf(out, format, a...)
	if file != nil {
		file.Log(level, plain(fmt.Sprintf(format, a...)))
	}
}

// plain strips the console level prefix and surrounding whitespace.
func plain(msg string) string {
	msg = strings.TrimSpace(msg)
	i := strings.Index(msg, "] ")
	if i <= 0 || msg[0] != '[' {
		return msg
	}
	switch strings.ToUpper(msg[1:i]) {
	case "INFO", "WARN", "ERROR", "DEBUG":
		return msg[i+2:]
	}
	return msg
}
