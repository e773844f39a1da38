// Package zerolog adapts a zerolog.Logger to finsync.Logger.
package zerolog

import (
	"github.com/rs/zerolog"

	"github.com/unkn0wn-root/finsync"
)

var _ finsync.Logger = Logger{}

type Logger struct{ L zerolog.Logger }

func (z Logger) Debug(msg string, f finsync.Fields) { z.log(z.L.Debug(), msg, f) }
func (z Logger) Info(msg string, f finsync.Fields)  { z.log(z.L.Info(), msg, f) }
func (z Logger) Warn(msg string, f finsync.Fields)  { z.log(z.L.Warn(), msg, f) }
func (z Logger) Error(msg string, f finsync.Fields) { z.log(z.L.Error(), msg, f) }

func (Logger) log(e *zerolog.Event, msg string, f finsync.Fields) {
	// nil when the level is disabled
	if e == nil {
		return
	}
	e.Fields(map[string]any(f)).Msg(msg)
}
