package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

// InitLogger initializes the structured logger with proper configuration
func InitLogger(logLevel string, isDevelopment bool) *logrus.Logger {
	return newLogger(logLevel, isDevelopment, os.Stdout)
}

func newLogger(logLevel string, isDevelopment bool, out io.Writer) *logrus.Logger {
	log := logrus.New()

	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			if isDevelopment {
				logLevel = "debug"
			} else {
				logLevel = "info"
			}
		}
	}

	log.SetOutput(out)

	if level, err := logrus.ParseLevel(strings.ToLower(logLevel)); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", logLevel).Warn("Invalid LOG_LEVEL, using INFO")
	}

	if !isDevelopment || strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     true,
		})
	}

	Logger = log
	return log
}

// GetLogger returns the global logger instance
func GetLogger() *logrus.Logger {
	if Logger == nil {
		return InitLogger("info", false)
	}
	return Logger
}

// WithComponent creates an entry scoped to one component. A nil log selects
// the global logger.
func WithComponent(log *logrus.Logger, component string) *logrus.Entry {
	if log == nil {
		log = GetLogger()
	}
	return log.WithField("component", component)
}

// WithRequestContext adds request context to entry; empty ids are omitted
func WithRequestContext(entry *logrus.Entry, requestID, playerID string) *logrus.Entry {
	fields := logrus.Fields{}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if playerID != "" {
		fields["player_id"] = playerID
	}
	return entry.WithFields(fields)
}

// WithHTTPContext adds HTTP request context to entry
func WithHTTPContext(entry *logrus.Entry, method, path, userAgent string) *logrus.Entry {
	return entry.WithFields(logrus.Fields{
		"http_method":     method,
		"http_path":       path,
		"http_user_agent": userAgent,
	})
}
