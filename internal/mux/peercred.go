package mux

import (
	"net"
	"os"
)

// peerIsCurrentUser reports whether the process on the other end of a Unix
// socket runs as our uid. Replaced in tests.
var peerIsCurrentUser = func(conn net.Conn) (bool, error) {
	uid, err := peerUID(conn)
	if err != nil {
		return false, err
	}
	return uid == uint32(os.Getuid()), nil
}
