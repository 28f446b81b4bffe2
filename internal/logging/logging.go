// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger setup.
type Options struct {
	Level string
	File  string // optional rotating log file
}

// Setup configures the standard logrus logger. Output goes to stderr since
// stdout carries the MCP protocol. The returned closer flushes the rotating
// file sink, if any.
func Setup(opts Options) io.Closer {
	log.SetLevel(ParseLevel(opts.Level))
	log.SetFormatter(&nested.Formatter{
		FieldsOrder:     []string{"component", "op"},
		TimestampFormat: time.RFC3339,
		HideKeys:        false,
		NoColors:        opts.File != "",
	})

	if opts.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}

	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    100, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, file))
	return file
}

// ParseLevel maps a level name to a logrus level, defaulting to info.
func ParseLevel(level string) log.Level {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
