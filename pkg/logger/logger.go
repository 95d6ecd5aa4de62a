package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Leveled logger shared by the catalog service and its tools.
// Init(level) once at startup; every package logs through the helpers below.

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
	LevelFatal: "fatal",
}

var (
	mu     sync.RWMutex
	logger *log.Logger = log.New(os.Stdout, "", 0)
	level  Level       = LevelInfo
)

// ParseLevel maps a case-insensitive level name to a Level. Unknown names
// fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	}
	return LevelInfo
}

// Init sets the global log level (debug, info, warn, error, fatal).
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	level = ParseLevel(l)
}

// SetOutput redirects log output; used by tests and the seed tool.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", 0)
}

func emit(l Level, format string, v ...interface{}) {
	mu.RLock()
	out, min := logger, level
	mu.RUnlock()
	if l < min && l != LevelFatal {
		return
	}
	prefix := fmt.Sprintf("%s [%s] ", time.Now().UTC().Format(time.RFC3339), strings.ToUpper(levelNames[l]))
	out.Printf(prefix+format, v...)
}

func Debugf(format string, v ...interface{}) { emit(LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { emit(LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { emit(LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { emit(LevelError, format, v...) }

func Fatalf(format string, v ...interface{}) {
	emit(LevelFatal, format, v...)
	os.Exit(1)
}

func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	return levelNames[level]
}
