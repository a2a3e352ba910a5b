package observability

import (
	"github.com/sirupsen/logrus"
)

// SetupLogging configures the global logrus logger. Production emits JSON,
// every other environment keeps the human-readable text format.
func SetupLogging(level, appEnv string) {
	if appEnv == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("Unknown log level, falling back to info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
