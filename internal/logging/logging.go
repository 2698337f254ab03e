/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging builds the process-wide slog.Logger for the CLI. Debug
// enablement is checked at log time, not at construction, so a --debug
// flag parsed after the logger exists still takes effect.
package logging

import (
	"context"
	"io"
	"log/slog"
)

// DebugEnabledFunc reports whether debug records should pass. It runs on
// every Debug-level record.
type DebugEnabledFunc func() bool

// debugCheckHandler defers the debug-level decision to debugEnabled.
// Other levels always pass.
type debugCheckHandler struct {
	handler      slog.Handler
	debugEnabled DebugEnabledFunc
}

func (h *debugCheckHandler) Enabled(_ context.Context, level slog.Level) bool {
	if level == slog.LevelDebug {
		return h.debugEnabled != nil && h.debugEnabled()
	}
	return true
}

func (h *debugCheckHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *debugCheckHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &debugCheckHandler{handler: h.handler.WithAttrs(attrs), debugEnabled: h.debugEnabled}
}

func (h *debugCheckHandler) WithGroup(name string) slog.Handler {
	return &debugCheckHandler{handler: h.handler.WithGroup(name), debugEnabled: h.debugEnabled}
}

// NewLogger returns a timestamp-free text logger on out whose debug level
// is gated by debugEnabled at log time.
func NewLogger(out io.Writer, debugEnabled DebugEnabledFunc) *slog.Logger {
	base := slog.NewTextHandler(out, &slog.HandlerOptions{
		// All records reach the wrapper; it does the level filtering.
		Level: slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})
	return slog.New(&debugCheckHandler{handler: base, debugEnabled: debugEnabled})
}
