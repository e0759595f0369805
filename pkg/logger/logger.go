// Package logger provides the structured logging wrapper used throughout
// the cluster manager.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with a fluent, component-scoped API.
type Logger struct {
	*logrus.Logger
	fields logrus.Fields
}

// Config holds logger configuration.
type Config struct {
	Level  string
	Format string
	Output string
	File   string
}

// New creates a new logger instance with the given configuration.
func New(config Config) (*Logger, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(level)

	switch config.Format {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	var output io.Writer
	switch config.Output {
	case "stderr":
		output = os.Stderr
	case "file":
		if config.File == "" {
			config.File = "cluster-manager.log"
		}
		if err := os.MkdirAll(filepath.Dir(config.File), 0o755); err != nil {
			return nil, err
		}
		file, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return nil, err
		}
		output = file
	default:
		output = os.Stdout
	}
	l.SetOutput(output)

	return &Logger{Logger: l, fields: make(logrus.Fields)}, nil
}

// WithField adds a field to the logger context.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	fields := make(logrus.Fields, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Logger{Logger: l.Logger, fields: fields}
}

// WithFields adds multiple fields to the logger context.
func (l *Logger) WithFields(fields logrus.Fields) *Logger {
	newFields := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &Logger{Logger: l.Logger, fields: newFields}
}

// WithError adds an error field to the logger context.
func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err.Error())
}

func (l *Logger) Debug(args ...interface{})                 { l.Logger.WithFields(l.fields).Debug(args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.Logger.WithFields(l.fields).Debugf(format, args...) }
func (l *Logger) Info(args ...interface{})                  { l.Logger.WithFields(l.fields).Info(args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.Logger.WithFields(l.fields).Infof(format, args...) }
func (l *Logger) Warn(args ...interface{})                  { l.Logger.WithFields(l.fields).Warn(args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.Logger.WithFields(l.fields).Warnf(format, args...) }
func (l *Logger) Error(args ...interface{})                 { l.Logger.WithFields(l.fields).Error(args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.Logger.WithFields(l.fields).Errorf(format, args...) }

// ClusterLogger creates a logger scoped to a single cluster.
func (l *Logger) ClusterLogger(name string) *Logger {
	return l.WithFields(logrus.Fields{"component": "cluster", "cluster": name})
}

// HostLogger creates a logger scoped to a single host.
func (l *Logger) HostLogger(cluster, address string) *Logger {
	return l.WithFields(logrus.Fields{"component": "host", "cluster": cluster, "address": address})
}

// HealthCheckLogger creates a logger scoped to the health checker.
func (l *Logger) HealthCheckLogger() *Logger {
	return l.WithField("component", "health_check")
}

// OutlierLogger creates a logger scoped to the outlier detector.
func (l *Logger) OutlierLogger() *Logger {
	return l.WithField("component", "outlier_detection")
}

// WorkerLogger creates a logger scoped to a single worker.
func (l *Logger) WorkerLogger(workerID int) *Logger {
	return l.WithFields(logrus.Fields{"component": "worker", "worker_id": workerID})
}

// ManagerLogger creates a logger scoped to the primary cluster manager.
func (l *Logger) ManagerLogger() *Logger {
	return l.WithField("component", "cluster_manager")
}

// AdminLogger creates a logger scoped to the admin HTTP surface.
func (l *Logger) AdminLogger() *Logger {
	return l.WithField("component", "admin")
}
