package logger

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Constants
const (
	LogFilePermissions = 0600
	InfoLogLevel       = "info"
	LastLogLines       = 100
	LoggerName         = "sshconn"
)

// Global variables
var (
	globalLogger *zap.Logger
	loggerMutex  sync.RWMutex

	// Global settings
	GlobalEnableConsoleLogger bool
	GlobalEnableFileLogger    bool
	GlobalEnableBufferLogger  bool
	GlobalLogPath             string = "/tmp/sshconn.log"
	GlobalLogLevel            string = InfoLogLevel
	GlobalInstantSync         bool
	GlobalLoggedBufferSize    int = 8192
	GlobalLogFile             *os.File
)

type Logger struct {
	*zap.Logger
}

// InitProduction builds the global logger from the Global* settings. Callers must
// hold loggerMutex.
func InitProduction() {
	if GlobalLogLevel == "" {
		GlobalLogLevel = InfoLogLevel
	}
	level := zap.NewAtomicLevelAt(getZapLevel(GlobalLogLevel))

	var cores []zapcore.Core
	if GlobalEnableConsoleLogger {
		cores = append(cores, createConsoleCore(level))
	}
	if GlobalEnableFileLogger {
		if fileCore, err := createFileCore(level); err == nil {
			cores = append(cores, fileCore)
		}
	}
	if GlobalEnableBufferLogger {
		cores = append(cores, createBufferCore(level))
	}

	if len(cores) == 0 {
		globalLogger = zap.NewNop()
		return
	}
	globalLogger = zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Named(LoggerName)
}

func baseEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func createConsoleCore(level zap.AtomicLevel) zapcore.Core {
	encoderConfig := baseEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("15:04:05"))
	}
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)
}

func createFileCore(level zap.AtomicLevel) (zapcore.Core, error) {
	logFile, err := os.OpenFile(
		GlobalLogPath,
		os.O_APPEND|os.O_CREATE|os.O_WRONLY,
		LogFilePermissions,
	)
	if err != nil {
		return nil, err
	}
	GlobalLogFile = logFile

	return zapcore.NewCore(
		zapcore.NewJSONEncoder(baseEncoderConfig()),
		zapcore.AddSync(logFile),
		level,
	), nil
}

func createBufferCore(level zap.AtomicLevel) zapcore.Core {
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(baseEncoderConfig()),
		zapcore.AddSync(globalLogBuffer),
		level,
	)
}

func (l *Logger) syncIfNeeded() {
	if GlobalInstantSync {
		_ = l.Sync()
	}
}

func (l *Logger) log(level zapcore.Level, msg string) {
	if l.Logger == nil {
		return
	}
	if ce := l.Logger.Check(level, msg); ce != nil {
		ce.Write()
	}
	l.syncIfNeeded()
}

func (l *Logger) Debug(msg string) { l.log(zapcore.DebugLevel, msg) }
func (l *Logger) Info(msg string)  { l.log(zapcore.InfoLevel, msg) }
func (l *Logger) Warn(msg string)  { l.log(zapcore.WarnLevel, msg) }
func (l *Logger) Error(msg string) { l.log(zapcore.ErrorLevel, msg) }

// Formatted logging methods
func (l *Logger) Debugf(format string, args ...interface{}) { l.Debug(fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...interface{})  { l.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.Warn(fmt.Sprintf(format, args...)) }

func (l *Logger) Errorf(
	format string,
	args ...interface{},
) {
	l.Error(fmt.Sprintf(format, args...))
}

// Field logging methods
func (l *Logger) DebugWithFields(msg string, fields ...zap.Field) {
	if l.Logger == nil {
		return
	}
	l.Logger.Debug(msg, fields...)
	l.syncIfNeeded()
}

func (l *Logger) InfoWithFields(msg string, fields ...zap.Field) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info(msg, fields...)
	l.syncIfNeeded()
}

func (l *Logger) WarnWithFields(msg string, fields ...zap.Field) {
	if l.Logger == nil {
		return
	}
	l.Logger.Warn(msg, fields...)
	l.syncIfNeeded()
}

func (l *Logger) ErrorWithFields(msg string, fields ...zap.Field) {
	if l.Logger == nil {
		return
	}
	l.Logger.Error(msg, fields...)
	l.syncIfNeeded()
}

func (l *Logger) With(fields ...zap.Field) *Logger {
	if l.Logger == nil {
		return l
	}
	return &Logger{Logger: l.Logger.With(fields...)}
}

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(fmt.Sprintf("[%s]", t.Format("2006-01-02 15:04:05")))
}

func getZapLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Get returns the process-wide logger, building it on first use.
func Get() *Logger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if globalLogger == nil {
		InitProduction()
	}
	return &Logger{Logger: globalLogger}
}

func SetGlobalLogger(l *Logger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if l == nil || l.Logger == nil {
		globalLogger = zap.NewNop()
		return
	}
	globalLogger = l.Logger
}

func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

func LogPanic(rec interface{}) {
	l := Get()
	l.ErrorWithFields("PANIC",
		zap.Any("recovered", rec),
		zap.String("stack", string(debug.Stack())),
	)
	_ = l.Sync()
}

func RecoverAndLog(f func()) {
	defer func() {
		if r := recover(); r != nil {
			LogPanic(r)
			panic(r)
		}
	}()
	f()
}

// LogBuffer keeps the most recent log lines in memory. It is an io.Writer so it can
// back a zap core directly.
type LogBuffer struct {
	lines   []string
	size    int
	partial strings.Builder
	mu      sync.RWMutex
}

func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = LastLogLines
	}
	return &LogBuffer{
		lines: make([]string, 0, size),
		size:  size,
	}
}

var globalLogBuffer = NewLogBuffer(GlobalLoggedBufferSize)

func (lb *LogBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.partial.Write(p)
	text := lb.partial.String()
	lb.partial.Reset()
	for {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			lb.partial.WriteString(text)
			break
		}
		lb.addLineLocked(text[:idx])
		text = text[idx+1:]
	}
	return len(p), nil
}

// AddLine adds a line, dropping the oldest once the buffer is full.
func (lb *LogBuffer) AddLine(line string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.addLineLocked(line)
}

func (lb *LogBuffer) addLineLocked(line string) {
	if len(lb.lines) >= lb.size {
		lb.lines = lb.lines[1:]
	}
	lb.lines = append(lb.lines, line)
}

func (lb *LogBuffer) GetLastLines(n int) []string {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if n <= 0 {
		return []string{}
	}
	if n >= len(lb.lines) {
		return append([]string{}, lb.lines...)
	}
	return append([]string{}, lb.lines[len(lb.lines)-n:]...)
}

// GetLastLines gets the last n lines written through the buffer core.
func GetLastLines(n int) []string {
	return globalLogBuffer.GetLastLines(n)
}
