// Package logger builds the zerolog loggers handed to every component.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const permission = 0o664

// Builder collects logger options. The zero writer is stderr.
type Builder struct {
	service string
	level   string
	writer  io.Writer
	path    string
	pretty  bool
}

// Logger is a built logger together with the file it writes to, if any.
type Logger struct {
	zerolog.Logger
	file *os.File
}

func New(service string) *Builder {
	return &Builder{service: service, level: zerolog.InfoLevel.String()}
}

func (b *Builder) Level(level string) *Builder {
	b.level = level
	return b
}

func (b *Builder) FromWriter(w io.Writer) *Builder {
	b.writer = w
	return b
}

// FromPath appends to the file at path instead of writing to a stream.
func (b *Builder) FromPath(path string) *Builder {
	b.path = path
	return b
}

// Pretty switches to human readable console output.
func (b *Builder) Pretty(pretty bool) *Builder {
	b.pretty = pretty
	return b
}

func (b *Builder) Make() (*Logger, error) {
	level, err := zerolog.ParseLevel(b.level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", b.level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := &Logger{}
	var w io.Writer = os.Stderr
	if b.writer != nil {
		w = b.writer
	}
	if b.path != "" {
		out.file, err = os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		w = zerolog.SyncWriter(out.file)
	}
	if b.pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05", NoColor: b.path != ""}
	}

	out.Logger = zerolog.New(w).Level(level).With().
		Timestamp().
		Str("service", b.service).
		Logger()
	return out, nil
}

// Close closes the log file opened by FromPath.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
