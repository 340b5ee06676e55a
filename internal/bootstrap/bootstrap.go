// Package bootstrap drives the server process through its S0-S5
// bootstrap sequence (spec §4.8): bind the privileged endpoint as root,
// start the unprivileged listener goroutine, drop privileges permanently,
// release the init barrier, then run the privileged accept loop.
//
// The privileged resource is built up in discrete, individually-validated
// steps, logging between them rather than doing everything in one opaque
// call.
package bootstrap

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/esdm-project/esdmd/internal/connserver"
	"github.com/esdm-project/esdmd/internal/dispatch"
	"github.com/esdm-project/esdmd/internal/endpoint"
	"github.com/esdm-project/esdmd/internal/logging"
	"github.com/esdm-project/esdmd/internal/procstate"
)

// Config carries everything the bootstrap sequence needs to stand the
// server up (spec §4.8, §6).
type Config struct {
	PrivSocketPath    string
	UnprivSocketPath  string
	DropUser          string
	ConnServer        connserver.Config
	PrivilegedTable   dispatch.ServiceTable
	UnprivilegedTable dispatch.ServiceTable
}

// Run executes S0-S5 and then runs the privileged accept loop in the
// calling goroutine. It returns an error on a process-fatal bootstrap
// failure (spec §7: process-fatal errors abort the whole server, there is
// no supervisor-side retry of a single bootstrap attempt), and nil once
// the privileged accept loop has ended.
func Run(cfg Config) error {
	exitFlag := &procstate.ExitFlag{}
	barrier := procstate.NewBarrier()

	// S1: bind the privileged endpoint while still root, mode 0600 (spec
	// §4.8 S1).
	privEP, err := endpoint.New(endpoint.Privileged, cfg.PrivSocketPath, 0o600, cfg.PrivilegedTable)
	if err != nil {
		return fmt.Errorf("bootstrap S1: bind privileged endpoint: %w", err)
	}
	logging.Info("bootstrap: privileged endpoint bound", "path", cfg.PrivSocketPath)

	// S2: spawn the unprivileged listener's bootstrap goroutine. It binds
	// its own endpoint (still as root, since the bind itself may require
	// privilege to recover a stale root-owned path) then blocks on the
	// barrier before accepting a single connection (spec §4.8a).
	unprivReady := make(chan error, 1)
	go func() {
		unprivEP, err := endpoint.New(endpoint.Unprivileged, cfg.UnprivSocketPath, 0o666, cfg.UnprivilegedTable)
		if err != nil {
			unprivReady <- fmt.Errorf("bootstrap S2: bind unprivileged endpoint: %w", err)
			return
		}
		unprivReady <- nil
		logging.Info("bootstrap: unprivileged endpoint bound, awaiting barrier release", "path", cfg.UnprivSocketPath)

		barrier.Wait()
		runAcceptLoop(unprivEP, cfg.ConnServer, exitFlag)
	}()
	if err := <-unprivReady; err != nil {
		privEP.Close()
		return err
	}

	// S3: permanently drop privileges. Verified, not assumed: if the
	// dropped-to euid is still 0 after the syscalls return success, abort
	// before releasing the barrier (spec §4.8 S3, §7: "abort before
	// release on verification failure").
	if err := DropPrivilegesPermanent(cfg.DropUser); err != nil {
		privEP.Close()
		return fmt.Errorf("bootstrap S3: drop privileges: %w", err)
	}
	logging.Info("bootstrap: privileges permanently dropped", "user", cfg.DropUser)

	// S4: release the barrier now that the process can no longer regain
	// root (spec §4.8 S4).
	barrier.Release()
	logging.Info("bootstrap: barrier released")

	// S5: run the privileged accept loop in the calling goroutine; it
	// never returns except on endpoint close (spec §4.8 S5).
	runAcceptLoop(privEP, cfg.ConnServer, exitFlag)
	return nil
}

// DropPrivilegesPermanent permanently drops root via Setresgid then Setresuid (in
// that order — dropping uid first would forfeit the privilege needed to
// change gid), replaces the supplementary groups with the target gid, and
// sets the real, effective and saved ids alike so a later seteuid(0)
// cannot resurrect root (spec §4.8 S3, REDESIGN FLAG awareness:
// Setuid/Setgid alone only change the effective id and leave the saved id
// at 0). Afterwards it verifies that neither the real nor the effective
// uid is still 0.
func DropPrivilegesPermanent(username string) error {
	if username == "" {
		return fmt.Errorf("drop-to user must not be empty")
	}
	u, err := user.Lookup(username)
	if err != nil {
		return fmt.Errorf("lookup user %q: %w", username, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("parse uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("parse gid %q: %w", u.Gid, err)
	}

	if err := unix.Setgroups([]int{gid}); err != nil {
		return fmt.Errorf("setgroups: %w", err)
	}
	if err := unix.Setresgid(gid, gid, gid); err != nil {
		return fmt.Errorf("setresgid: %w", err)
	}
	if err := unix.Setresuid(uid, uid, uid); err != nil {
		return fmt.Errorf("setresuid: %w", err)
	}

	if unix.Geteuid() == 0 || unix.Getuid() == 0 {
		return fmt.Errorf("privilege drop verification failed: still root after setresuid/setresgid")
	}
	return nil
}

// runAcceptLoop accepts connections on ep until it is closed, exitFlag is
// set, or accept fails with ENOMEM, handing each one to connserver.Handle
// on its own goroutine (spec §4.9, §5). Any other accept error is logged
// and retried.
func runAcceptLoop(ep *endpoint.Endpoint, connCfg connserver.Config, exitFlag *procstate.ExitFlag) {
	connCfg.Table = ep.Table
	for {
		conn, err := ep.AcceptUnix()
		if err != nil {
			if endpoint.IsClosed(err) || exitFlag.IsSet() {
				return
			}
			if errors.Is(err, unix.ENOMEM) {
				logging.Error("accept out of memory, stopping accept loop", "tier", string(ep.Tier), "error", err)
				return
			}
			logging.Warn("accept error", "tier", string(ep.Tier), "error", err)
			continue
		}
		go connserver.Handle(conn, connCfg)
	}
}
