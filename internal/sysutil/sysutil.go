// Package sysutil holds process bootstrap helpers shared by the coordinator
// server and the worker agent: global logger setup and worker identity.
package sysutil

import (
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel configures the global zerolog level based on a string value.
// Supported values (case-insensitive): debug, info, warn, error, fatal, panic.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// SetupLogger sets the global level, points the global logger at w (stderr
// when nil), and makes it the fallback for log.Ctx on contexts that carry no
// logger. pretty switches to the human console format. The component name is
// attached to every line.
func SetupLogger(w io.Writer, level string, pretty bool, component string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	SetLogLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	zerolog.DefaultContextLogger = &log.Logger
	return log.Logger
}

// IsTruthy reports whether an environment variable string should be considered true.
// Accepted values (case-insensitive): "1", "true", "yes", "y", "on".
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// FirstNonEmpty returns the first non-empty string from a variadic list.
// If all values are empty, it returns "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var agentUnsafe = regexp.MustCompile(`[^A-Za-z0-9._:\-]+`)

// AgentName picks the worker identity sent as X-Agent-ID: the explicit
// value when set, otherwise the host name. Characters the coordinator does
// not accept become '-' and the result is capped at 64 bytes.
func AgentName(explicit string, hostname func() (string, error)) string {
	host := ""
	if hostname != nil {
		host, _ = hostname()
	}
	name := strings.TrimSpace(FirstNonEmpty(explicit, host, "agent"))
	name = strings.Trim(agentUnsafe.ReplaceAllString(name, "-"), "-")
	if name == "" {
		name = "agent"
	}
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}
