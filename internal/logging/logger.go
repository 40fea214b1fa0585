// Package logging holds the process-wide structured logger.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is shared by every package. It is usable before Init is called.
var Logger = logrus.New()

type appNameHook struct {
	appName string
}

// Levels implements logrus.Hook.
func (h *appNameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (h *appNameHook) Fire(entry *logrus.Entry) error {
	entry.Message = "[" + h.appName + "] " + entry.Message
	return nil
}

// Init configures output, level and formatting. An empty or invalid level
// falls back to info.
func Init(appName, level string) {
	Logger.SetOutput(os.Stdout)

	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		Logger.Warnf("Invalid log level '%s', defaulting to INFO", level)
		parsed = logrus.InfoLevel
	}
	Logger.SetLevel(parsed)

	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if appName != "" {
		Logger.AddHook(&appNameHook{appName})
	}
}

// RedactURL keeps the scheme and host of a feed URL and hides the rest.
// Rental platform export links carry a secret token in the path or query.
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexAny(rest, "/?#"); j != -1 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
