// Package symbolizer resolves byte offsets inside an unstripped executable
// or shared object to source locations, by driving an out-of-process
// llvm-symbolizer or addr2line as a long-lived coprocess over pipes.
//
// A Symbolizer moves through three states: uninitialized, ready with an
// llvm-symbolizer backend, and ready with an addr2line backend. Init
// chooses the backend by pattern-matching the basename of the path it's
// given; Fini tears everything down and returns to uninitialized. Between
// those, CodeSend/CodeRead/CodeFree and DataSend/DataRead/DataFree mirror
// the request/response/release cycle of a single pending result.
//
// A Symbolizer is not safe for concurrent use: operations are serialized
// with a contention-detecting lock, so a caller that violates this gets a
// clear ErrConcurrentUse rather than a silent data race. Grounded on
// lib/symbolizer.cpp's SymbolizerTool interface and lib/interface.cpp's
// Init/Fini/SymbolizeCode/SymbolizeData/ReadCode/ReadData/FreeCode/FreeData.
package symbolizer

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/canonical/go-symbolizer/internal/addr2line"
	"github.com/canonical/go-symbolizer/internal/llvmsym"
	"github.com/canonical/go-symbolizer/internal/reply"
	"github.com/canonical/go-symbolizer/internal/symlog"
)

// checkExecutable reports whether path refers to an existing, executable
// regular file; mirrors internal/channel's own pre-spawn check, done here
// too so Init can distinguish ErrPathNotExecutable from a backend that
// simply failed to start for some other reason.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
		return os.ErrPermission
	}
	return nil
}

// backend is the façade's view of either llvmsym.Backend or
// addr2line.Pool, letting the state machine below stay ignorant of which
// one it's driving.
type backend interface {
	symbolizeCode(module string, offset uint32, arch string) ([]reply.Frame, bool)
	symbolizeData(module string, offset uint32, arch string) (reply.Data, bool)
	close()
}

type llvmAdapter struct{ b *llvmsym.Backend }

func (a llvmAdapter) symbolizeCode(module string, offset uint32, arch string) ([]reply.Frame, bool) {
	return a.b.SymbolizeCode(module, uint64(offset), arch)
}
func (a llvmAdapter) symbolizeData(module string, offset uint32, arch string) (reply.Data, bool) {
	return a.b.SymbolizeData(module, uint64(offset), arch)
}
func (a llvmAdapter) close() { a.b.Close() }

type addr2lineAdapter struct{ p *addr2line.Pool }

func (a addr2lineAdapter) symbolizeCode(module string, offset uint32, _ string) ([]reply.Frame, bool) {
	return a.p.SymbolizeCode(module, offset)
}
func (a addr2lineAdapter) symbolizeData(module string, offset uint32, _ string) (reply.Data, bool) {
	return a.p.SymbolizeData(module, offset)
}
func (a addr2lineAdapter) close() { a.p.Close() }

// codeSlot holds the result of the most recent successful CodeSend.
type codeSlot struct {
	result CodeResult
	valid  bool
}

// dataSlot holds the result of the most recent successful DataSend.
type dataSlot struct {
	result DataResult
	valid  bool
}

// Symbolizer is a single symbolization session bound to one backend
// process (or pool of processes, for addr2line). The zero value is not
// usable; construct one with New.
type Symbolizer struct {
	mu sync.Mutex

	backend backend
	code    codeSlot
	data    dataSlot
}

// New returns an uninitialized Symbolizer. Call Init before any other
// method.
func New() *Symbolizer { return &Symbolizer{} }

// lock serializes access to the state machine: a caller that reenters a
// Symbolizer from a second goroutine gets ErrConcurrentUse instead of the
// slots being quietly corrupted. It panics, rather than returning a Status,
// because there is no sensible request in flight to attach the status to —
// the same treatment internal/procutil gives its pipe-allocation invariant
// violation, in place of the original library's process-ending CHECK
// failure.
func (s *Symbolizer) lock() {
	if !s.mu.TryLock() {
		panic(ErrConcurrentUse)
	}
}

// Init transitions UNINITIALIZED -> READY, selecting a backend by
// pattern-matching the basename of path: a "llvm-symbolizer" prefix
// selects the LLVM backend, an exact "addr2line" match selects the
// addr2line pool, anything else is unsupported.
func (s *Symbolizer) Init(path string) Status {
	s.lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		s.teardown()
	}

	if path == "" {
		return StatusPathCorrupted
	}
	if err := checkExecutable(path); err != nil {
		return StatusPathNotExecutable
	}

	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "llvm-symbolizer"):
		s.backend = llvmAdapter{b: llvmsym.New(path, hostArchString())}
	case base == "addr2line":
		s.backend = addr2lineAdapter{p: addr2line.NewPool(path)}
	default:
		return StatusUnsupportedTool
	}

	symlog.Default.Infof("symbolizer initialized: path=%q tool=%q", path, base)
	return StatusInitDone
}

// Fini transitions back to UNINITIALIZED: kills any live child, drops the
// backend and both result slots.
func (s *Symbolizer) Fini() {
	s.lock()
	defer s.mu.Unlock()
	s.teardown()
}

func (s *Symbolizer) teardown() {
	if s.backend != nil {
		s.backend.close()
		s.backend = nil
	}
	s.code = codeSlot{}
	s.data = dataSlot{}
}

// CodeSend drives the backend to symbolize a code offset inside module and
// returns the number of frames recovered (possibly 0), or an error status
// if the backend isn't ready or the request failed.
func (s *Symbolizer) CodeSend(module string, offset uint32) (int, Status) {
	s.lock()
	defer s.mu.Unlock()

	if s.backend == nil {
		return 0, StatusHasNullptr
	}

	rframes, ok := s.backend.symbolizeCode(module, offset, "")
	if !ok {
		return 0, StatusSymbolizeFailed
	}

	frames := make([]Frame, len(rframes))
	for i, f := range rframes {
		frames[i] = Frame{Func: f.Func, File: f.File, Line: f.Line, Column: f.Column}
	}
	s.code = codeSlot{
		result: CodeResult{Module: module, ModuleOffset: offset, Frames: frames},
		valid:  true,
	}
	return len(frames), StatusSendDone
}

// CodeRead returns the idx'th frame of the most recent CodeSend result.
// Requires a prior successful CodeSend; idx out of range yields
// StatusOutOfBounds.
func (s *Symbolizer) CodeRead(idx int) (file, fn string, line, col uint64, status Status) {
	s.lock()
	defer s.mu.Unlock()

	if !s.code.valid {
		return "", "", 0, 0, StatusHasNullptr
	}
	if idx < 0 || idx >= len(s.code.result.Frames) {
		return "", "", 0, 0, StatusOutOfBounds
	}
	f := s.code.result.Frames[idx]
	return f.File, f.Func, f.Line, f.Column, StatusReadDone
}

// CodeFree releases the current code result slot. Reading after Free
// returns StatusHasNullptr, same as never having sent a request.
func (s *Symbolizer) CodeFree() {
	s.lock()
	defer s.mu.Unlock()
	s.code = codeSlot{}
}

// DataSend drives the backend to symbolize a data offset inside module. An
// addr2line-backed Symbolizer always fails this request: addr2line has no
// data-symbolization mode.
func (s *Symbolizer) DataSend(module string, offset uint32) Status {
	s.lock()
	defer s.mu.Unlock()

	if s.backend == nil {
		return StatusHasNullptr
	}

	d, ok := s.backend.symbolizeData(module, offset, "")
	if !ok {
		return StatusSymbolizeFailed
	}

	s.data = dataSlot{
		result: DataResult{
			Module:       module,
			ModuleOffset: offset,
			Name:         d.Name,
			Start:        d.Start,
			Size:         d.Size,
			File:         d.File,
			Line:         d.Line,
		},
		valid: true,
	}
	return StatusSendDone
}

// DataRead returns the most recent DataSend result. Requires a prior
// successful DataSend.
func (s *Symbolizer) DataRead() (file, name string, line, start, size uint64, status Status) {
	s.lock()
	defer s.mu.Unlock()

	if !s.data.valid {
		return "", "", 0, 0, 0, StatusHasNullptr
	}
	d := s.data.result
	return d.File, d.Name, d.Line, d.Start, d.Size, StatusReadDone
}

// DataFree releases the current data result slot.
func (s *Symbolizer) DataFree() {
	s.lock()
	defer s.mu.Unlock()
	s.data = dataSlot{}
}

// Default is the package-wide Symbolizer used by the Init/Fini/... package
// functions below, reproducing the single-process-wide-singleton ergonomics
// of the original C ABI for callers who don't need more than one session.
var Default = New()

func Init(path string) Status { return Default.Init(path) }
func Fini()                   { Default.Fini() }

func CodeSend(module string, offset uint32) (int, Status) {
	return Default.CodeSend(module, offset)
}

func CodeRead(idx int) (file, fn string, line, col uint64, status Status) {
	return Default.CodeRead(idx)
}

func CodeFree() { Default.CodeFree() }

func DataSend(module string, offset uint32) Status {
	return Default.DataSend(module, offset)
}

func DataRead() (file, name string, line, start, size uint64, status Status) {
	return Default.DataRead()
}

func DataFree() { Default.DataFree() }
