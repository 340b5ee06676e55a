package access

import (
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPeerCredentialsOverUnixSocketPair(t *testing.T) {
	dir := t.TempDir()
	sockPath := dir + "/test.sock"

	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	defer ln.Close()

	acceptErr := make(chan error, 1)
	var serverConn *net.UnixConn
	go func() {
		c, err := ln.Accept()
		if err == nil {
			serverConn = c.(*net.UnixConn)
		}
		acceptErr <- err
	}()

	client, err := net.Dial("unix", sockPath)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, <-acceptErr)
	defer serverConn.Close()

	creds, err := PeerCredentials(serverConn)
	require.NoError(t, err)
	require.Equal(t, uint32(os.Getuid()), creds.UID)
	require.Equal(t, int32(os.Getpid()), creds.PID)
}

func TestIsPrivileged(t *testing.T) {
	require.True(t, IsPrivileged(Credentials{UID: 0}))
	require.False(t, IsPrivileged(Credentials{UID: 1000}))
}
