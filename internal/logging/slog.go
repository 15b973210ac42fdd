// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// NewSlogLogger bridges the global zerolog logger to *slog.Logger for
// libraries that only speak slog (the supervisor's sutureslog hook).
func NewSlogLogger() *slog.Logger {
	return slog.New(&slogBridge{})
}

// slogBridge forwards slog records into zerolog, preserving level and
// attributes. Groups are flattened with dotted keys.
type slogBridge struct {
	attrs  []slog.Attr
	prefix string
}

func (b *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return mapLevel(level) >= zerolog.GlobalLevel()
}

func (b *slogBridge) Handle(_ context.Context, rec slog.Record) error {
	logger := Logger()
	event := logger.WithLevel(mapLevel(rec.Level))
	for _, attr := range b.attrs {
		event = event.Interface(b.prefix+attr.Key, attr.Value.Any())
	}
	rec.Attrs(func(attr slog.Attr) bool {
		event = event.Interface(b.prefix+attr.Key, attr.Value.Any())
		return true
	})
	event.Msg(rec.Message)
	return nil
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	merged = append(merged, b.attrs...)
	merged = append(merged, attrs...)
	return &slogBridge{attrs: merged, prefix: b.prefix}
}

func (b *slogBridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	return &slogBridge{attrs: b.attrs, prefix: b.prefix + name + "."}
}

func mapLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
