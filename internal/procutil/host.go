// Package procutil launches and supervises the out-of-process symbolizer
// child: a well-isolated fork/exec with two high-numbered pipes wired to
// its stdin/stdout, plus the three monitoring primitives (is-running, wait,
// kill) that internal/channel needs to keep a long-lived coprocess alive
// across thousands of requests.
//
// Grounded on lib/symbolizer.cpp's StartSubprocess, CreateTwoHighNumberedPipes,
// KillChildProcess and IsProcessRunning, expressed with os/exec plus
// golang.org/x/sys/unix the way lxd's own process-control call sites do
// (lxc/exec_unix.go, lxd/daemon.go) rather than raw syscall numbers.
package procutil

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/canonical/go-symbolizer/internal/symlog"
)

// errPipeAllocation reports that no pair of pipes with both endpoints above
// stderr could be allocated after repeated attempts. Spawn panics with it:
// it is an internal invariant violation, and a panic takes the place of the
// original library's process-ending CHECK failure. Any other pipe-creation
// error is returned as a plain error and counts as a failed start attempt.
var errPipeAllocation = errors.New("procutil: could not allocate two high-numbered pipes")

// startupSettle is how long Spawn waits after Start before checking that the
// child hasn't already exited (SANSYMTOOL's kSymbolizerStartupTimeMillis).
const startupSettle = 10 * time.Millisecond

// Host wraps one live child process and the pipe pair used to talk to it.
// A Host is single-use: once Kill'd or once the child has exited, create a
// new one via Spawn rather than trying to resurrect it.
type Host struct {
	cmd   *exec.Cmd
	write *os.File // parent's end of the child's stdin
	read  *os.File // parent's end of the child's stdout
}

// Spawn forks argv[0] with the given argv, isolated into its own session so
// that signals delivered to the caller's process group (SIGINT, SIGHUP,
// SIGTERM) don't reach it, with stdin/stdout wired to a pair of
// high-numbered pipes and every other fd closed in the child. Returns the
// Host on success; any pipe fds handed to the child are closed on every
// return path, success or failure.
func Spawn(argv []string) (*Host, error) {
	if len(argv) == 0 {
		return nil, errors.New("procutil: empty argv")
	}

	stdinPipe, stdoutPipe, err := createTwoHighFDPipes()
	if errors.Is(err, errPipeAllocation) {
		panic(err)
	}
	if err != nil {
		return nil, err
	}
	childStdin, parentStdin := stdinPipe[0], stdinPipe[1]
	parentStdout, childStdout := stdoutPipe[0], stdoutPipe[1]

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = childStdin
	cmd.Stdout = childStdout
	// Setsid isolates the child from the caller's controlling terminal and
	// process group; os/exec's own fd plumbing already ensures nothing
	// above stderr leaks into the child, so there is no manual close loop
	// to write here.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	startErr := cmd.Start()

	// The parent's copies of the fds it handed to the child are released
	// unconditionally, exactly as StartSubprocess's at_scope_exit does.
	_ = childStdin.Close()
	_ = childStdout.Close()

	if startErr != nil {
		_ = parentStdin.Close()
		_ = parentStdout.Close()
		return nil, startErr
	}

	time.Sleep(startupSettle)

	h := &Host{cmd: cmd, write: parentStdin, read: parentStdout}
	if !h.IsRunning() {
		_ = parentStdin.Close()
		_ = parentStdout.Close()
		return nil, errors.New("procutil: child exited immediately after start")
	}

	return h, nil
}

// PID returns the child's process id.
func (h *Host) PID() int { return h.cmd.Process.Pid }

// Writer returns the pipe end used to send commands to the child's stdin.
func (h *Host) Writer() io.Writer { return h.write }

// Reader returns the pipe end used to read the child's stdout.
func (h *Host) Reader() io.Reader { return h.read }

// IsRunning does a non-blocking reap and reports whether the child is
// still alive. "No such child" (already reaped elsewhere) is treated as
// not running rather than as an error.
func (h *Host) IsRunning() bool {
	var ws unix.WaitStatus
	pid, err := unix.Wait4(h.PID(), &ws, unix.WNOHANG, nil)
	if err != nil {
		// ECHILD (already reaped elsewhere) and any other error both mean
		// "can't confirm it's running" — treated as not running, never as
		// a hard failure.
		return false
	}
	return pid == 0
}

// Wait blocks until the child exits and returns its exit state.
func (h *Host) Wait() (*os.ProcessState, error) {
	return h.cmd.Process.Wait()
}

// Kill sends SIGKILL and blocks until the child is reaped. Idempotent: a
// second call (or a call after the child has already exited on its own)
// reports success rather than an error, matching KillChildProcess's
// "already gone" handling.
func (h *Host) Kill() error {
	if !h.IsRunning() {
		h.closePipes()
		return nil
	}

	if err := unix.Kill(h.PID(), unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		symlog.Default.Warnf("failed to SIGKILL symbolizer child pid=%d: %v", h.PID(), err)
		return err
	}

	_, _ = h.Wait()
	h.closePipes()
	return nil
}

func (h *Host) closePipes() {
	if h.write != nil {
		_ = h.write.Close()
		h.write = nil
	}
	if h.read != nil {
		_ = h.read.Close()
		h.read = nil
	}
}
