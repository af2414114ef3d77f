package transport

import (
	"go.uber.org/zap"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on, 0 picks a free port, see TCP.Addr
	Port int

	// Reuseport controls setting SO_REUSEPORT
	Reuseport bool

	// NumListeners is how many listeners share the port. It only has an
	// effect with Reuseport.
	NumListeners int

	// Trace logs every line received and sent. This is only useful in local
	// debugging
	Trace bool

	Handler Handler

	Log *zap.Logger
}
