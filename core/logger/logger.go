package logger

import (
	"io"
	"log/slog"
	"os"
)

// config holds the options accumulated by New's functional options.
type config struct {
	level     slog.Level
	json      bool
	output    io.Writer
	baseAttrs []slog.Attr
}

// Option configures a logger built by New.
type Option func(*config)

// WithLevel sets the minimum level the logger emits.
func WithLevel(level slog.Level) Option {
	return func(c *config) { c.level = level }
}

// WithJSONFormatter switches the logger to JSON output, the format used in
// staging and production.
func WithJSONFormatter() Option {
	return func(c *config) { c.json = true }
}

// WithOutput sets the writer the logger emits to. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *config) { c.output = w }
}

// WithAttr attaches a static attribute to every record.
func WithAttr(attr slog.Attr) Option {
	return func(c *config) { c.baseAttrs = append(c.baseAttrs, attr) }
}

// WithDevelopment configures a text-format, debug-level logger tagged with
// the given service name, suitable for local development.
func WithDevelopment(service string) Option {
	return func(c *config) {
		c.level = slog.LevelDebug
		c.json = false
		c.baseAttrs = append(c.baseAttrs, slog.String("service", service))
	}
}

// WithProduction configures a JSON-format, info-level logger tagged with
// the given service name.
func WithProduction(service string) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		c.json = true
		c.baseAttrs = append(c.baseAttrs, slog.String("service", service))
	}
}

// New builds a *slog.Logger from the given options. With no options it
// produces an Info-level text logger writing to os.Stdout; use Discard for
// the silent logger every layer and the consumer runtime fall back to when
// no logger is configured.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:  slog.LevelInfo,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}

	handlerOpts := &slog.HandlerOptions{Level: c.level}

	var handler slog.Handler
	if c.json {
		handler = slog.NewJSONHandler(c.output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(c.output, handlerOpts)
	}

	l := slog.New(handler)
	if len(c.baseAttrs) > 0 {
		anyAttrs := make([]any, len(c.baseAttrs))
		for i, a := range c.baseAttrs {
			anyAttrs[i] = a
		}
		l = l.With(anyAttrs...)
	}
	return l
}

// Discard returns a logger that drops every record, used as the default
// inside components that accept an optional *slog.Logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
