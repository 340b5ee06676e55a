// Package access implements the access guard (spec §4.6): resolving a
// connected unix-socket peer's OS identity and deciding whether it is
// privileged. This is advisory defense-in-depth — the endpoint's
// file-mode (internal/endpoint) is the primary control; the credential
// check here catches a misconfigured filesystem permission.
//
// Peer identity resolution calls straight into golang.org/x/sys/unix for
// the OS facility the standard library doesn't expose (SO_PEERCRED),
// rather than wrapping it behind another layer of abstraction.
package access

import (
	"net"

	"golang.org/x/sys/unix"
)

// Credentials is the peer identity obtained from SO_PEERCRED.
type Credentials struct {
	UID uint32
	GID uint32
	PID int32
}

// PeerCredentials resolves the credentials of the process on the other
// end of conn via SO_PEERCRED.
func PeerCredentials(conn *net.UnixConn) (Credentials, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return Credentials{}, err
	}

	var ucred *unix.Ucred
	var sysErr error
	err = raw.Control(func(fd uintptr) {
		ucred, sysErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return Credentials{}, err
	}
	if sysErr != nil {
		return Credentials{}, sysErr
	}

	return Credentials{UID: ucred.Uid, GID: ucred.Gid, PID: ucred.Pid}, nil
}

// IsPrivileged reports whether the given peer is considered privileged:
// effective UID 0 (spec §4.6).
func IsPrivileged(c Credentials) bool {
	return c.UID == 0
}
