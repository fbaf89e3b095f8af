// Package addr2line drives a pool of addr2line coprocesses: unlike
// llvm-symbolizer, addr2line takes its module as an argv argument and so
// can only ever symbolize offsets in the one module it was launched
// against. The Pool hides that behind a map keyed by module path, spawning
// one child per module on first use.
//
// Grounded on lib/use_addr2line.cpp's Addr2LineProcess and Addr2LinePool.
package addr2line

import (
	"bytes"
	"fmt"

	"github.com/canonical/go-symbolizer/internal/channel"
	"github.com/canonical/go-symbolizer/internal/metrics"
	"github.com/canonical/go-symbolizer/internal/reply"
)

// demangle and inlines mirror SANSYMTOOL_ADDR2LINE_DEMANGLE / _INLINES.
const (
	demangle = true
	inlines  = true
)

// terminator is the literal addr2line emits for a failed lookup; a dummy
// request using sentinelOffset is appended to every real request so the
// child always emits one, marking the end of the real reply.
const terminator = "??\n??:0\n"

// sentinelOffset is the largest pointer-sized unsigned value (MaxUint64 on
// 64-bit builds, MaxUint32 on 32-bit ones), guaranteed invalid for any real
// module and therefore guaranteed to produce terminator.
const sentinelOffset = ^uintptr(0)

// maxPoolSize bounds how many per-module children the pool keeps alive at
// once. The reference source reserves capacity for this many without ever
// enforcing it; this pool enforces the documented policy: an insert past
// the bound kills every pooled child first.
const maxPoolSize = 16

// backend is one child bound to a single module.
type backend struct {
	module string
	ch     *channel.Channel
}

func newBackend(path, module string) *backend {
	b := &backend{module: module}
	b.ch = channel.New(path, "addr2line", b)
	return b
}

// Argv implements channel.Backend.
func (b *backend) Argv(path string) []string {
	argv := []string{path}
	if demangle {
		argv = append(argv, "-C")
	}
	if inlines {
		argv = append(argv, "-i")
	}
	argv = append(argv, "-fe", b.module)
	return argv
}

// ReachedEndOfOutput implements channel.Backend: addr2line's reply always
// ends with the literal terminator, and must contain strictly more than
// just the terminator (a lone terminator means "still waiting", since even
// a reply for an invalid offset is followed by the dummy request's own
// terminator).
func (b *backend) ReachedEndOfOutput(buf []byte) bool {
	if len(buf) <= len(terminator) {
		return false
	}
	return bytes.HasSuffix(buf, []byte(terminator))
}

// symbolize sends offset paired with the sentinel dummy offset and returns
// the reply for the real offset only, with the dummy's terminator stripped.
func (b *backend) symbolize(offset uint32) ([]reply.Frame, bool) {
	cmd := fmt.Sprintf("0x%x\n0x%x\n", offset, uint64(sentinelOffset))
	buf, ok := b.ch.Send([]byte(cmd))
	if !ok {
		return nil, false
	}
	return reply.ParseCode(trimTerminator(buf)), true
}

// trimTerminator cuts buf at the first occurrence of terminator found from
// index 1 onward (index 0 is skipped because a reply for an invalid real
// offset legitimately starts with the terminator itself; scanning from 1
// finds the dummy request's terminator instead, per
// Addr2LineProcess::ReadFromSymbolizer).
func trimTerminator(buf []byte) []byte {
	if len(buf) < 2 {
		return buf
	}
	idx := bytes.Index(buf[1:], []byte(terminator))
	if idx < 0 {
		return buf
	}
	return buf[:idx+1]
}

// Pool maps module path to a dedicated addr2line child, spawning children
// lazily and enforcing maxPoolSize via kill-all-on-overflow. Not safe for
// concurrent use, consistent with the façade's single-threaded contract.
type Pool struct {
	path     string
	children map[string]*backend
}

// NewPool returns a Pool that will launch children from path on demand.
func NewPool(path string) *Pool {
	return &Pool{path: path, children: make(map[string]*backend)}
}

// SymbolizeCode finds or creates the child for module and symbolizes offset.
func (p *Pool) SymbolizeCode(module string, offset uint32) ([]reply.Frame, bool) {
	b, ok := p.children[module]
	if !ok {
		if len(p.children) >= maxPoolSize {
			p.killAll()
			metrics.PoolEvictions.Inc()
		}
		b = newBackend(p.path, module)
		p.children[module] = b
	}
	return b.symbolize(offset)
}

// SymbolizeData always fails: addr2line has no data-symbolization mode.
func (p *Pool) SymbolizeData(string, uint32) (reply.Data, bool) {
	return reply.Data{}, false
}

func (p *Pool) killAll() {
	for module, b := range p.children {
		b.ch.Kill()
		delete(p.children, module)
	}
}

// Close kills every pooled child.
func (p *Pool) Close() { p.killAll() }
