package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseData_Full(t *testing.T) {
	d := ParseData([]byte("my_global\n4096 8\nglobals.c:12\n"))
	assert.Equal(t, Data{Name: "my_global", Start: 4096, Size: 8, File: "globals.c", Line: 12}, d)
}

func TestParseData_NoFileLine(t *testing.T) {
	d := ParseData([]byte("my_global\n4096 8\n"))
	assert.Equal(t, Data{Name: "my_global", Start: 4096, Size: 8}, d)
}

func TestParseData_Empty(t *testing.T) {
	assert.Equal(t, Data{}, ParseData([]byte("\n")))
	assert.Equal(t, Data{}, ParseData(nil))
}

func TestParseData_FilePathWithColon(t *testing.T) {
	// The third line splits on the first colon, so a file path that itself
	// contains one (e.g. a Windows drive letter) truncates the file and
	// leaves line unparsed rather than being reassembled.
	d := ParseData([]byte("v\n0 4\nC:\\src\\globals.c:9\n"))
	assert.Equal(t, "C", d.File)
	assert.Equal(t, uint64(0), d.Line)
}
