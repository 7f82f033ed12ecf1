package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  *logrus.Logger
	ErrorLogger *logrus.Logger
)

func init() {
	InitLogger()
}

func InitLogger() {
	InfoLogger = logrus.New()
	ErrorLogger = logrus.New()

	// info to stdout, errors to stderr
	InfoLogger.SetOutput(os.Stdout)
	InfoLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	ErrorLogger.SetOutput(os.Stderr)
	ErrorLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	InfoLogger.SetLevel(logrus.InfoLevel)
	ErrorLogger.SetLevel(logrus.WarnLevel)
}

// SetLevel adjusts the info logger, e.g. "debug" in development.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	InfoLogger.SetLevel(lvl)
}
