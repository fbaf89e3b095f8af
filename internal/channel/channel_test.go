package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lineEchoBackend drives testdata/echo_reply.sh: every command is echoed
// back verbatim followed by a blank line.
type lineEchoBackend struct{}

func (lineEchoBackend) Argv(path string) []string { return []string{"sh", path} }

func (lineEchoBackend) ReachedEndOfOutput(buf []byte) bool {
	n := len(buf)
	return n >= 2 && buf[n-1] == '\n' && buf[n-2] == '\n'
}

func TestSend_RoundTrip(t *testing.T) {
	c := New("testdata/echo_reply.sh", "test", lineEchoBackend{})
	defer c.Kill()

	buf, ok := c.Send([]byte("hello\n"))
	require.True(t, ok)
	assert.Equal(t, "hello\n\n", string(buf))
	assert.True(t, c.IsRunning())
}

func TestSend_MultipleRequestsReuseChild(t *testing.T) {
	c := New("testdata/echo_reply.sh", "test", lineEchoBackend{})
	defer c.Kill()

	_, ok := c.Send([]byte("one\n"))
	require.True(t, ok)
	pid1 := c.PID()

	buf, ok := c.Send([]byte("two\n"))
	require.True(t, ok)
	assert.Equal(t, "two\n\n", string(buf))
	assert.Equal(t, pid1, c.PID())
}

func TestSend_NonExecutablePathFails(t *testing.T) {
	c := New("testdata/does-not-exist.sh", "test", lineEchoBackend{})
	_, ok := c.Send([]byte("hello\n"))
	assert.False(t, ok)
	assert.True(t, c.failedToStart)
}

func TestSend_RestartBudgetExhausted(t *testing.T) {
	c := New("testdata/die_immediately.sh", "test", lineEchoBackend{})

	_, ok := c.Send([]byte("hello\n"))
	assert.False(t, ok)
	assert.True(t, c.failedToStart)
	assert.Equal(t, MaxRestarts, c.restarts)

	// Once latched, Send fails immediately without attempting to restart
	// again.
	_, ok = c.Send([]byte("hello\n"))
	assert.False(t, ok)
}
