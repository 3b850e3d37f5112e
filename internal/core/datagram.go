package core

import (
	"net"
	"time"
)

// Datagram is one TZSP datagram as read from a socket or a capture file.
// The receiver owns Data until the pipeline returns.
type Datagram struct {
	Data      []byte
	Sender    *net.UDPAddr
	Timestamp time.Time
}
