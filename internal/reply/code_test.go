package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCode_NullResult(t *testing.T) {
	frames := ParseCode([]byte("??\n??:0\n\n"))
	if assert.Len(t, frames, 1) {
		assert.Equal(t, Frame{}, frames[0])
	}
}

func TestParseCode_LineOnly(t *testing.T) {
	frames := ParseCode([]byte("main\nfile.c:42\n\n"))
	if assert.Len(t, frames, 1) {
		assert.Equal(t, Frame{Func: "main", File: "file.c", Line: 42}, frames[0])
	}
}

func TestParseCode_LineAndColumn(t *testing.T) {
	frames := ParseCode([]byte("main\nfile.c:42:7\n\n"))
	if assert.Len(t, frames, 1) {
		assert.Equal(t, Frame{Func: "main", File: "file.c", Line: 42, Column: 7}, frames[0])
	}
}

func TestParseCode_Addr2LineUnknownLine(t *testing.T) {
	frames := ParseCode([]byte("main\nfile.c:?\n"))
	if assert.Len(t, frames, 1) {
		assert.Equal(t, Frame{Func: "main", File: "file.c"}, frames[0])
	}
}

func TestParseCode_Inlined(t *testing.T) {
	frames := ParseCode([]byte("outer\nouter.c:10\ninner\ninner.c:20:3\n\n"))
	if assert.Len(t, frames, 2) {
		assert.Equal(t, Frame{Func: "outer", File: "outer.c", Line: 10}, frames[0])
		assert.Equal(t, Frame{Func: "inner", File: "inner.c", Line: 20, Column: 3}, frames[1])
	}
}

func TestParseCode_Empty(t *testing.T) {
	assert.Empty(t, ParseCode([]byte("\n")))
	assert.Empty(t, ParseCode(nil))
}

func TestParseCode_TruncatedReplyRecoversWhatItCan(t *testing.T) {
	frames := ParseCode([]byte("main\nfile.c:42"))
	if assert.Len(t, frames, 1) {
		assert.Equal(t, Frame{Func: "main", File: "file.c", Line: 42}, frames[0])
	}
}
