package conservgc

import (
	"log/slog"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// NewSlogLogger builds a Config.Logger backed by an arbitrary
// slog.Handler, via logiface-slog. The concrete, handler-typed logger is
// erased to the general *logiface.Logger[logiface.Event] Config.Logger
// expects via Logger().
func NewSlogLogger(handler slog.Handler) *logiface.Logger[logiface.Event] {
	return logiface.New[*islog.Event](islog.NewLogger(handler)).Logger()
}
