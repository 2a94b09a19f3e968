// High level log wrapper, so it can output different log based on level.
//
// There are five levels in total: FATAL, ERROR, WARNING, INFO, DEBUG.
// The default log output level is INFO, you can change it by:
// - call log.SetLevelByString()
// - set environment variable `LOG_LEVEL`
//
// Records are written through github.com/pingcap/log, so they share the zap encoder and the file rotation of the
// structured logger returned by L().

package log

import (
	"os"
	"strings"
	"sync"

	plog "github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	props *plog.ZapProperties
	sugar *zap.SugaredLogger
)

func init() {
	if err := InitLogger(getLogLevel(), ""); err != nil {
		panic(err)
	}
}

func getLogLevel() string {
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		return l
	}
	return "info"
}

// InitLogger (re)creates the global logger. An empty file logs to stderr, otherwise records go to file, rotated
// by pingcap/log.
func InitLogger(level, file string) error {
	cfg := &plog.Config{
		Level:  normalizeLevel(level),
		Format: "text",
		File: plog.FileLogConfig{
			Filename:   file,
			MaxSize:    300,
			MaxBackups: 10,
		},
	}
	lg, p, err := plog.InitLogger(cfg, zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return err
	}
	plog.ReplaceGlobals(lg, p)

	mu.Lock()
	props = p
	sugar = lg.WithOptions(zap.AddCallerSkip(1)).Sugar()
	mu.Unlock()
	return nil
}

// normalizeLevel maps the level names used in configs and LOG_LEVEL to zap's.
func normalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "warning":
		return "warn"
	case "":
		return "info"
	}
	return strings.ToLower(level)
}

// SetLevelByString changes the level of the global logger, unknown names are ignored.
func SetLevelByString(level string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(normalizeLevel(level))); err != nil {
		Warnf("unknown log level %q", level)
		return
	}
	mu.RLock()
	props.Level.SetLevel(l)
	mu.RUnlock()
}

// GetLevel returns the name of the current level.
func GetLevel() string {
	mu.RLock()
	defer mu.RUnlock()
	return props.Level.Level().String()
}

// L returns the structured logger.
func L() *zap.Logger {
	return plog.L()
}

// Sync flushes buffered records.
func Sync() error {
	return plog.Sync()
}

func s() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Info(v ...interface{}) {
	s().Info(v...)
}

func Infof(format string, v ...interface{}) {
	s().Infof(format, v...)
}

func Panic(v ...interface{}) {
	s().Panic(v...)
}

func Panicf(format string, v ...interface{}) {
	s().Panicf(format, v...)
}

func Debug(v ...interface{}) {
	s().Debug(v...)
}

func Debugf(format string, v ...interface{}) {
	s().Debugf(format, v...)
}

func Warn(v ...interface{}) {
	s().Warn(v...)
}

func Warnf(format string, v ...interface{}) {
	s().Warnf(format, v...)
}

func Warning(v ...interface{}) {
	s().Warn(v...)
}

func Warningf(format string, v ...interface{}) {
	s().Warnf(format, v...)
}

func Error(v ...interface{}) {
	s().Error(v...)
}

func Errorf(format string, v ...interface{}) {
	s().Errorf(format, v...)
}

func Fatal(v ...interface{}) {
	s().Fatal(v...)
}

func Fatalf(format string, v ...interface{}) {
	s().Fatalf(format, v...)
}
