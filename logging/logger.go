package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

// BootstrapLogger configures the global logger. Unknown levels fall back to debug.
func BootstrapLogger(level string, format string) {
	Log = &logrus.Logger{
		Out:   os.Stdout,
		Hooks: make(logrus.LevelHooks),
		Formatter: &logrus.TextFormatter{
			DisableColors:    false,
			DisableQuote:     false,
			DisableTimestamp: false,
			FullTimestamp:    true,
			TimestampFormat:  "",
		},
		ReportCaller: false,
		Level:        logrus.DebugLevel,
		ExitFunc:     os.Exit,
	}

	if strings.EqualFold(format, "json") {
		Log.SetFormatter(&logrus.JSONFormatter{})
	}

	if lvl, err := logrus.ParseLevel(level); err == nil {
		Log.SetLevel(lvl)
	}

	Log.SetReportCaller(true)
}
