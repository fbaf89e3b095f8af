// Package channel implements the line-oriented request/response protocol
// spoken with a long-lived symbolizer coprocess: write a command, read
// until a backend-specific end-of-response marker, hand back the
// accumulated reply. It owns the restart-on-failure policy so that callers
// (the llvmsym and addr2line backends) never see a crashed child, only an
// occasional false from Send once the restart budget is exhausted.
//
// Grounded on lib/symbolizer.{h,cpp}'s SymbolizerProcess: SendCommand,
// SendCommandImpl, Restart, ReadFromSymbolizer, WriteToSymbolizer.
package channel

import (
	"io"
	"os"
	"time"

	"github.com/canonical/go-symbolizer/internal/metrics"
	"github.com/canonical/go-symbolizer/internal/procutil"
	"github.com/canonical/go-symbolizer/internal/symlog"
)

// MaxRestarts bounds how many times Send will kill-and-relaunch the child
// before giving up and latching failedToStart. Matches kMaxTimesRestarted.
const MaxRestarts = 5

// readChunkSize is how much is read from the child per syscall while
// accumulating a reply; matches ReadFromSymbolizer's max_length.
const readChunkSize = 1024

// Backend supplies the two things that differ between llvm-symbolizer and
// addr2line: how to invoke the binary, and how to recognise the end of one
// reply in the accumulating byte buffer.
type Backend interface {
	// Argv returns the full argv (including argv[0] == path) used to exec
	// the child.
	Argv(path string) []string
	// ReachedEndOfOutput reports whether buf, as read so far, contains a
	// complete reply per this backend's framing rule.
	ReachedEndOfOutput(buf []byte) bool
}

// Channel is one child process plus the pipe pair used to talk to it. Not
// safe for concurrent use — every call site above it (the façade) serializes
// access with its own lock instead.
type Channel struct {
	path    string
	kind    string
	backend Backend
	log     *symlog.Logger

	host *procutil.Host
	buf  []byte

	restarts            int
	failedToStart       bool
	reportedInvalidPath bool
}

// New returns a Channel that will, on first Send, exec path per backend's
// Argv. The child is not started eagerly — channels are created lazily by
// backends on first use. kind labels this channel's metrics ("llvm" or
// "addr2line").
func New(path, kind string, backend Backend) *Channel {
	return &Channel{path: path, kind: kind, backend: backend, log: symlog.Default}
}

// Send writes command and returns the accumulated reply bytes. Returns
// (nil, false) if the channel has latched failedToStart, or once the
// restart budget (MaxRestarts) is exhausted without a successful
// round-trip — in which case failedToStart latches for good; only
// discarding this Channel and building a new one (via Fini+Init at the
// façade level) recovers.
//
// The returned slice aliases the Channel's internal buffer and is only
// valid until the next call to Send.
func (c *Channel) Send(command []byte) ([]byte, bool) {
	if c.failedToStart {
		return nil, false
	}

	start := time.Now()
	defer func() {
		metrics.SendDuration.WithLabelValues(c.kind).Observe(time.Since(start).Seconds())
	}()

	for c.restarts < MaxRestarts {
		if buf, ok := c.sendOnce(command); ok {
			return buf, true
		}
		c.Restart()
		c.restarts++
		metrics.ChannelRestarts.WithLabelValues(c.kind).Inc()
	}

	if !c.failedToStart {
		c.log.Warnf("failed to use and restart external symbolizer at %q", c.path)
		c.failedToStart = true
		metrics.ChannelFailedToStart.WithLabelValues(c.kind).Inc()
	}
	return nil, false
}

func (c *Channel) sendOnce(command []byte) ([]byte, bool) {
	if c.host == nil && !c.start() {
		return nil, false
	}
	if !c.write(command) {
		return nil, false
	}
	return c.readUntilEnd()
}

// Restart kills any live child (to prevent zombies), closes the channel's
// pipes, and launches a fresh one. Exported so a backend can force a
// restart outside of the Send retry loop.
func (c *Channel) Restart() bool {
	if c.host != nil {
		_ = c.host.Kill()
		c.host = nil
	}
	return c.start()
}

func (c *Channel) start() bool {
	if err := checkExecutable(c.path); err != nil {
		if !c.reportedInvalidPath {
			c.log.Warnf("invalid path to external symbolizer %q: %v", c.path, err)
			c.reportedInvalidPath = true
		}
		return false
	}

	argv := c.backend.Argv(c.path)
	c.log.Debugf("starting external symbolizer: %q", argv)
	host, err := procutil.Spawn(argv)
	if err != nil {
		c.log.Warnf("external symbolizer %q didn't start up correctly: %v", c.path, err)
		return false
	}

	c.host = host
	return true
}

func (c *Channel) write(command []byte) bool {
	if len(command) == 0 {
		return true
	}
	n, err := c.host.Writer().Write(command)
	if err != nil || n != len(command) {
		c.log.Warnf("can't write to symbolizer (pid=%d): %v", c.host.PID(), err)
		return false
	}
	return true
}

func (c *Channel) readUntilEnd() ([]byte, bool) {
	c.buf = c.buf[:0]
	chunk := make([]byte, readChunkSize)
	for {
		n, err := c.host.Reader().Read(chunk)
		// We can't read 0 bytes: the backend is never expected to close
		// its stdout between requests.
		if n == 0 {
			c.log.Warnf("can't read from symbolizer (pid=%d): %v", c.host.PID(), err)
			return nil, false
		}
		c.buf = append(c.buf, chunk[:n]...)

		if c.backend.ReachedEndOfOutput(c.buf) {
			return c.buf, true
		}
		if err != nil && err != io.EOF {
			return nil, false
		}
	}
}

// IsRunning reports whether the current child is alive.
func (c *Channel) IsRunning() bool {
	return c.host != nil && c.host.IsRunning()
}

// Kill terminates and reaps the current child, if any.
func (c *Channel) Kill() bool {
	if c.host == nil {
		return true
	}
	err := c.host.Kill()
	c.host = nil
	return err == nil
}

// PID returns the current child's pid, or 0 if there is none.
func (c *Channel) PID() int {
	if c.host == nil {
		return 0
	}
	return c.host.PID()
}

// checkExecutable verifies path refers to an existing, executable regular
// file, the first step of the original's start sequence.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return os.ErrPermission
	}
	if info.Mode().Perm()&0o111 == 0 {
		return os.ErrPermission
	}
	return nil
}
