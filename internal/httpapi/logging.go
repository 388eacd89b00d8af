package httpapi

import (
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, the HTTP layer stays quiet
// beyond error payloads.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logEvent() *zerolog.Event {
	if zlog == nil {
		nop := zerolog.Nop()
		return nop.Info()
	}
	return zlog.Info()
}
