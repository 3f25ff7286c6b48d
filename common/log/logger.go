package log

import (
	"os"

	kitlog "github.com/go-kit/kit/log"
	kitlevel "github.com/go-kit/kit/log/level"
)

// Logger is the keyval logger used across the node. It matches the shape of
// the upstream consensus loggers so subsystems can stay agnostic of the sink.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
	With(keyvals ...interface{}) Logger
}

var (
	fileWriter *AsyncFileWriter
	logger     Logger
)

func init() {
	logger = NewConsoleLogger()
}

func InitLogger(l Logger) {
	// TODO: close log file when node stopped
	logger = l
}

func NewConsoleLogger() Logger {
	return kitLogger{src: kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))}
}

func NewAsyncFileLogger(filePath string, buffSize int64) Logger {
	if fileWriter != nil {
		fileWriter.Stop()
	}

	fileWriter = NewAsyncFileWriter(filePath, buffSize)
	fileWriter.Start()

	return kitLogger{src: kitlog.NewLogfmtLogger(fileWriter)}
}

func Debug(msg string, keyvals ...interface{}) {
	logger.Debug(msg, keyvals...)
}

func Info(msg string, keyvals ...interface{}) {
	logger.Info(msg, keyvals...)
}

func Error(msg string, keyvals ...interface{}) {
	logger.Error(msg, keyvals...)
}

func With(keyvals ...interface{}) Logger {
	return logger.With(keyvals...)
}

// kitLogger adapts a go-kit logger to the leveled keyval interface above.
type kitLogger struct {
	src kitlog.Logger
}

func (l kitLogger) Debug(msg string, keyvals ...interface{}) {
	kitlevel.Debug(l.src).Log(append([]interface{}{"msg", msg}, keyvals...)...)
}

func (l kitLogger) Info(msg string, keyvals ...interface{}) {
	kitlevel.Info(l.src).Log(append([]interface{}{"msg", msg}, keyvals...)...)
}

func (l kitLogger) Error(msg string, keyvals ...interface{}) {
	kitlevel.Error(l.src).Log(append([]interface{}{"msg", msg}, keyvals...)...)
}

func (l kitLogger) With(keyvals ...interface{}) Logger {
	return kitLogger{src: kitlog.With(l.src, keyvals...)}
}

// NewNopLogger returns a logger that discards everything. Handy in tests.
func NewNopLogger() Logger {
	return kitLogger{src: kitlog.NewNopLogger()}
}
