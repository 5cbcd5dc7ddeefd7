// Package logging wires github.com/charmbracelet/log into slog.Handler so
// appmgr.New and the simulation driver can log through the standard
// slog API while keeping charmbracelet's level-colored text renderer.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// SetupHandlerText configures a text slog handler at the given level,
// writing to writer (os.Stderr if nil).
func SetupHandlerText(logLevel string, writer io.Writer) slog.Handler {
	if writer == nil {
		writer = os.Stderr
	}

	reportCaller := false
	reportTimestamp := false
	lvl := log.InfoLevel
	switch strings.ToLower(logLevel) {
	case "trace":
		reportCaller = true
		reportTimestamp = true
		lvl = log.DebugLevel
	case "debug":
		reportTimestamp = true
		lvl = log.DebugLevel
	case "info":
		lvl = log.InfoLevel
	case "warn", "warning":
		lvl = log.WarnLevel
	case "error":
		lvl = log.ErrorLevel
	}

	return log.NewWithOptions(writer, log.Options{
		ReportTimestamp: reportTimestamp,
		ReportCaller:    reportCaller,
		Level:           lvl,
	})
}

// SetupLogger installs a text handler at logLevel as the slog default and
// returns it; cmd/appmgrsim passes the returned handler to appmgr.New
// explicitly.
func SetupLogger(logLevel string) slog.Handler {
	handler := SetupHandlerText(logLevel, nil)
	slog.SetDefault(slog.New(handler))
	return handler
}
