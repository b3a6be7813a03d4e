package queue

import (
	"fmt"
	"log/slog"
	"os"
)

// Logger adapts slog to asynq's printf-free logger interface.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger.With("component", "asynq")}
}

func (l *Logger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *Logger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l *Logger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *Logger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }

func (l *Logger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
