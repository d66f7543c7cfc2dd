//go:build linux || darwin

package mux

import (
	"fmt"
	"net"
)

func peerUID(conn net.Conn) (uint32, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return 0, fmt.Errorf("peer credentials need a unix socket, got %T", conn)
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return 0, err
	}

	var uid uint32
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		uid, credErr = sockoptPeerUID(int(fd))
	}); err != nil {
		return 0, err
	}
	return uid, credErr
}
