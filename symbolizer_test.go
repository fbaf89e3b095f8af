package symbolizer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_EmptyPath(t *testing.T) {
	s := New()
	assert.Equal(t, StatusPathCorrupted, s.Init(""))
}

func TestInit_NonExecutablePath(t *testing.T) {
	s := New()
	assert.Equal(t, StatusPathNotExecutable, s.Init("testdata/scenario_b/not-executable"))
}

func TestInit_UnsupportedTool(t *testing.T) {
	s := New()
	assert.Equal(t, StatusUnsupportedTool, s.Init("testdata/scenario_c/nm"))
}

func TestCodeSend_SingleFrame(t *testing.T) {
	s := New()
	require.Equal(t, StatusInitDone, s.Init("testdata/scenario_d/llvm-symbolizer"))
	defer s.Fini()

	n, status := s.CodeSend("m", 0x100)
	require.Equal(t, StatusSendDone, status)
	require.Equal(t, 1, n)

	file, fn, line, col, status := s.CodeRead(0)
	assert.Equal(t, StatusReadDone, status)
	assert.Equal(t, "/a/b.c", file)
	assert.Equal(t, "foo", fn)
	assert.Equal(t, uint64(10), line)
	assert.Equal(t, uint64(3), col)
}

func TestCodeSend_InlinedTwoFrames(t *testing.T) {
	s := New()
	require.Equal(t, StatusInitDone, s.Init("testdata/scenario_e/llvm-symbolizer"))
	defer s.Fini()

	n, status := s.CodeSend("m", 0x100)
	require.Equal(t, StatusSendDone, status)
	require.Equal(t, 2, n)

	_, _, _, col0, _ := s.CodeRead(0)
	_, _, _, col1, _ := s.CodeRead(1)
	assert.Equal(t, uint64(3), col0)
	assert.Equal(t, uint64(0), col1)

	_, _, _, _, status = s.CodeRead(2)
	assert.Equal(t, StatusOutOfBounds, status)
}

func TestDataSend_TwoLineReply(t *testing.T) {
	s := New()
	require.Equal(t, StatusInitDone, s.Init("testdata/scenario_f/llvm-symbolizer"))
	defer s.Fini()

	status := s.DataSend("m", 0x200)
	require.Equal(t, StatusSendDone, status)

	file, name, line, start, size, status := s.DataRead()
	assert.Equal(t, StatusReadDone, status)
	assert.Equal(t, "", file)
	assert.Equal(t, "g_var", name)
	assert.Equal(t, uint64(0), line)
	assert.Equal(t, uint64(0x4000), start)
	assert.Equal(t, uint64(16), size)
}

func TestCodeSend_Addr2Line(t *testing.T) {
	s := New()
	require.Equal(t, StatusInitDone, s.Init("testdata/scenario_g/addr2line"))
	defer s.Fini()

	n, status := s.CodeSend("/bin/m", 0x42)
	require.Equal(t, StatusSendDone, status)
	require.Equal(t, 1, n)

	file, fn, line, col, status := s.CodeRead(0)
	assert.Equal(t, StatusReadDone, status)
	assert.Equal(t, "/a/b.c", file)
	assert.Equal(t, "main", fn)
	assert.Equal(t, uint64(42), line)
	assert.Equal(t, uint64(0), col)
}

func TestDataSend_Addr2LineUnsupported(t *testing.T) {
	s := New()
	require.Equal(t, StatusInitDone, s.Init("testdata/scenario_g/addr2line"))
	defer s.Fini()

	assert.Equal(t, StatusSymbolizeFailed, s.DataSend("/bin/m", 0x42))
}

func TestCodeSend_RestartOnBrokenChild(t *testing.T) {
	_ = os.Remove("testdata/scenario_h/.started_once")
	t.Cleanup(func() { _ = os.Remove("testdata/scenario_h/.started_once") })

	s := New()
	require.Equal(t, StatusInitDone, s.Init("testdata/scenario_h/llvm-symbolizer"))
	defer s.Fini()

	n, status := s.CodeSend("m", 0x1)
	require.Equal(t, StatusSendDone, status)
	require.Equal(t, 1, n)

	_, fn, line, _, _ := s.CodeRead(0)
	assert.Equal(t, "foo", fn)
	assert.Equal(t, uint64(1), line)
}

func TestCodeSend_RestartCapExhausted(t *testing.T) {
	s := New()
	require.Equal(t, StatusInitDone, s.Init("testdata/scenario_i/llvm-symbolizer"))
	defer s.Fini()

	_, status := s.CodeSend("m", 0x1)
	assert.Equal(t, StatusSymbolizeFailed, status)
	assert.ErrorIs(t, status.Err(), ErrSymbolizeFailed)
}

func TestFini_ResetsToUninitialized(t *testing.T) {
	s := New()
	require.Equal(t, StatusInitDone, s.Init("testdata/scenario_d/llvm-symbolizer"))
	_, _ = s.CodeSend("m", 0x1)
	s.Fini()

	_, _, _, _, status := s.CodeRead(0)
	assert.Equal(t, StatusHasNullptr, status)

	n, status := s.CodeSend("m", 0x1)
	assert.Equal(t, StatusHasNullptr, status)
	assert.Equal(t, 0, n)
}

func TestCodeFree_IdempotentAndBlanksSlot(t *testing.T) {
	s := New()
	require.Equal(t, StatusInitDone, s.Init("testdata/scenario_d/llvm-symbolizer"))
	defer s.Fini()

	_, _ = s.CodeSend("m", 0x1)
	s.CodeFree()
	s.CodeFree()

	_, _, _, _, status := s.CodeRead(0)
	assert.Equal(t, StatusHasNullptr, status)
}

func TestConcurrentUse_Panics(t *testing.T) {
	s := New()
	require.Equal(t, StatusInitDone, s.Init("testdata/scenario_d/llvm-symbolizer"))
	defer s.Fini()

	s.mu.Lock()
	defer s.mu.Unlock()

	assert.PanicsWithValue(t, ErrConcurrentUse, func() {
		s.CodeSend("m", 0x1)
	})
}
