package bootstrap

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/esdm-project/esdmd/internal/connserver"
	"github.com/esdm-project/esdmd/internal/dispatch"
)

func TestDropPrivilegesRejectsEmptyUsername(t *testing.T) {
	err := DropPrivilegesPermanent("")
	require.Error(t, err)
}

func TestDropPrivilegesRejectsUnknownUsername(t *testing.T) {
	err := DropPrivilegesPermanent("esdmd-no-such-user-0x7f")
	require.Error(t, err)
}

// TestDropPrivilegesSucceedsAsRoot only runs when the test binary itself
// has root privileges (CI and most dev machines don't): it is the one
// path in bootstrap that is only meaningfully exercised with real
// capability to drop, matching spec §4.8 S3's verify-after-drop contract.
func TestDropPrivilegesSucceedsAsRoot(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("requires root to exercise a real privilege drop")
	}
	err := DropPrivilegesPermanent("nobody")
	require.NoError(t, err)
	require.NotEqual(t, 0, os.Geteuid())
}

func TestRunFailsWhenPrivilegedEndpointPathIsInvalid(t *testing.T) {
	err := Run(Config{
		PrivSocketPath:    "/nonexistent-dir-0x7f/priv.sock",
		UnprivSocketPath:  t.TempDir() + "/unpriv.sock",
		DropUser:          "nobody",
		ConnServer:        connserver.Config{MaxMsg: 1024},
		PrivilegedTable:   dispatch.NewStaticTable(),
		UnprivilegedTable: dispatch.NewStaticTable(),
	})
	require.Error(t, err)
}

func TestRunFailsWhenUnprivilegedEndpointPathIsInvalid(t *testing.T) {
	err := Run(Config{
		PrivSocketPath:    t.TempDir() + "/priv.sock",
		UnprivSocketPath:  "/nonexistent-dir-0x7f/unpriv.sock",
		DropUser:          "nobody",
		ConnServer:        connserver.Config{MaxMsg: 1024},
		PrivilegedTable:   dispatch.NewStaticTable(),
		UnprivilegedTable: dispatch.NewStaticTable(),
	})
	require.Error(t, err)
}
