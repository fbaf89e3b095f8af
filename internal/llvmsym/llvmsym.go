// Package llvmsym drives an llvm-symbolizer coprocess: CODE and DATA
// requests against a single long-lived child that can symbolize any
// module, using module:arch suffixes to disambiguate cross-arch binaries.
//
// Grounded on lib/use_llvm_symbolizer.cpp's LLVMSymbolizerProcess /
// LLVMSymbolizer (GetArgV, ReachedEndOfOutput, FormatAndSendCommand).
package llvmsym

import (
	"fmt"

	"github.com/canonical/go-symbolizer/internal/channel"
	"github.com/canonical/go-symbolizer/internal/reply"
)

// demangle and inlines mirror the compile-time toggles
// SANSYMTOOL_LLVMSYMBOLIZER_DEMANGLE / _INLINES: demangling is left to the
// caller (frames carry mangled names), inlined frames are requested.
const (
	demangle = false
	inlines  = true
)

// maxCommandLen is the scratch-buffer cap a formatted request must fit in
// to be sent at all; matches kBufferSize's use in FormatAndSendCommand.
const maxCommandLen = 16 * 1024

// Backend drives one llvm-symbolizer child for CODE and DATA requests.
type Backend struct {
	ch       *channel.Channel
	archHint string
}

// New returns a Backend that will lazily exec path on first use, passing
// defaultArch (the host's architecture string, computed in arch.go) as
// --default-arch.
func New(path, defaultArch string) *Backend {
	b := &Backend{archHint: defaultArch}
	b.ch = channel.New(path, "llvm", b)
	return b
}

// Argv implements channel.Backend.
func (b *Backend) Argv(path string) []string {
	demangleFlag := "--no-demangle"
	if demangle {
		demangleFlag = "--demangle"
	}
	inlineFlag := "--no-inlines"
	if inlines {
		inlineFlag = "--inlines"
	}
	arch := b.archHint
	if arch == "" {
		arch = "unknown"
	}
	return []string{path, demangleFlag, inlineFlag, "--default-arch=" + arch}
}

// ReachedEndOfOutput implements channel.Backend: llvm-symbolizer terminates
// every reply with a blank line.
func (b *Backend) ReachedEndOfOutput(buf []byte) bool {
	n := len(buf)
	return n >= 2 && buf[n-1] == '\n' && buf[n-2] == '\n'
}

// formatCommand builds "<prefix> \"<module>[:<arch>]\" 0x<offset>\n",
// failing closed (empty string, false) if it would exceed maxCommandLen
// rather than truncating and sending a corrupt request.
func formatCommand(prefix, module string, offset uint64, arch string) (string, bool) {
	var cmd string
	if arch == "" {
		cmd = fmt.Sprintf("%s \"%s\" 0x%x\n", prefix, module, offset)
	} else {
		cmd = fmt.Sprintf("%s \"%s:%s\" 0x%x\n", prefix, module, arch, offset)
	}
	if len(cmd) >= maxCommandLen {
		return "", false
	}
	return cmd, true
}

// SymbolizeCode sends a CODE request and returns the parsed frames.
func (b *Backend) SymbolizeCode(module string, offset uint64, arch string) ([]reply.Frame, bool) {
	cmd, ok := formatCommand("CODE", module, offset, arch)
	if !ok {
		return nil, false
	}
	buf, ok := b.ch.Send([]byte(cmd))
	if !ok {
		return nil, false
	}
	return reply.ParseCode(buf), true
}

// SymbolizeData sends a DATA request and returns the parsed record.
func (b *Backend) SymbolizeData(module string, offset uint64, arch string) (reply.Data, bool) {
	cmd, ok := formatCommand("DATA", module, offset, arch)
	if !ok {
		return reply.Data{}, false
	}
	buf, ok := b.ch.Send([]byte(cmd))
	if !ok {
		return reply.Data{}, false
	}
	return reply.ParseData(buf), true
}

// Close kills the child, if any.
func (b *Backend) Close() { b.ch.Kill() }
