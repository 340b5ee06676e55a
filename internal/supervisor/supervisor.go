// Package supervisor implements the long-lived parent process (spec
// §4.7): it self-re-execs into a "server" subcommand child (REDESIGN
// FLAG 1 — fork(2) is unsafe once goroutines exist), relays termination
// signals to the child without acting on them itself, waits for the
// child's exit, and then runs a best-effort cleanup of every resource the
// bootstrap child may have left behind.
//
// Cleanup runs as a fixed sequence of steps, each logged, none aborting
// the ones after it if it fails.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/esdm-project/esdmd/internal/logging"
)

// relayedSignals are forwarded verbatim to the child; the supervisor
// itself takes no action on receipt beyond the relay (spec §4.7).
var relayedSignals = []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM}

// Resources names everything a bootstrap child may have created that the
// supervisor must try to reclaim once the child exits, regardless of how
// it exited (spec §4.7, Open Question resolution #2 in DESIGN.md: cleanup
// is unconditional on exit status).
type Resources struct {
	PrivSocketPath   string
	UnprivSocketPath string
	ShmID            int // 0 means none was ever created
	SemID            int // 0 means none was ever created
}

// ServerArgs are the command-line arguments passed to the re-exec'd
// "server" subcommand; the supervisor never interprets them, only
// forwards them so the child bootstraps identically to how the
// supervisor itself was invoked.
type ServerArgs []string

// Run re-execs the current binary into "server" <args...>, relays
// termination signals to it, waits for it to exit, and always runs
// cleanup afterward. It returns the child's exit error, if any — cleanup
// failures are logged, never returned, since by the time cleanup runs the
// child has already exited and there is nothing left to roll back to.
func Run(args ServerArgs, res Resources) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("supervisor: resolve own executable: %w", err)
	}

	cmdArgs := append([]string{"server"}, args...)
	cmd := exec.Command(self, cmdArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: start child: %w", err)
	}
	logging.Info("supervisor: child started", "pid", cmd.Process.Pid)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, relayedSignals...)
	defer signal.Stop(sigCh)

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	go relaySignals(relayCtx, sigCh, cmd.Process.Pid)

	waitErr := cmd.Wait()
	stopRelay()
	if waitErr != nil {
		logging.Warn("supervisor: child exited with error", "error", waitErr)
	} else {
		logging.Info("supervisor: child exited cleanly")
	}

	cleanup(res)
	return waitErr
}

func relaySignals(ctx context.Context, sigCh <-chan os.Signal, childPID int) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			logging.Info("supervisor: relaying signal to child", "signal", sig.String(), "pid", childPID)
			if err := syscall.Kill(childPID, sig.(syscall.Signal)); err != nil {
				logging.Warn("supervisor: failed to relay signal", "error", err)
			}
		}
	}
}

// cleanup runs every reclamation step unconditionally, logging but never
// aborting on a step's failure (spec §4.7, §7: supervisor-level cleanup
// errors are logged, not escalated — there is no one left to report them
// to).
func cleanup(res Resources) {
	removeSocket(res.PrivSocketPath)
	removeSocket(res.UnprivSocketPath)
	removeSysvShm(res.ShmID)
	removeSysvSem(res.SemID)
}

func removeSocket(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn("supervisor: cleanup: failed to remove socket", "path", path, "error", err)
		return
	}
	logging.Debug("supervisor: cleanup: removed socket", "path", path)
}

// removeSysvShm releases the SysV shared memory segment created in place
// of a POSIX named shared memory region (cgo-free substitute, REDESIGN
// FLAG 2's sibling decision for shm — see SPEC_FULL.md).
func removeSysvShm(id int) {
	if id == 0 {
		return
	}
	if _, err := unix.SysvShmCtl(id, unix.IPC_RMID, nil); err != nil {
		logging.Warn("supervisor: cleanup: failed to remove sysv shm segment", "id", id, "error", err)
		return
	}
	logging.Debug("supervisor: cleanup: removed sysv shm segment", "id", id)
}

// removeSysvSem releases the SysV semaphore set used in place of a POSIX
// named semaphore, since sem_open requires cgo (REDESIGN FLAG 2).
func removeSysvSem(id int) {
	if id == 0 {
		return
	}
	if _, err := unix.SemctlInt(id, 0, unix.IPC_RMID, 0); err != nil {
		logging.Warn("supervisor: cleanup: failed to remove sysv semaphore set", "id", id, "error", err)
		return
	}
	logging.Debug("supervisor: cleanup: removed sysv semaphore set", "id", id)
}
