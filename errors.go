package symbolizer

import "errors"

// Sentinel errors alongside the numeric Status codes, for callers that want
// errors.Is instead of comparing against magic ints. Each except
// ErrConcurrentUse (the panic value of a contended Symbolizer) corresponds
// 1:1 to a Status value of the same shape, following lxd/cgroup/errors.go's
// package-level sentinel-error convention.
var (
	ErrPathCorrupted     = errors.New("symbolizer: path is empty")
	ErrPathNotExecutable = errors.New("symbolizer: path is not an executable regular file")
	ErrUnsupportedTool   = errors.New("symbolizer: unrecognised symbolizer tool")
	ErrSymbolizeFailed   = errors.New("symbolizer: backend failed to symbolize the request")
	ErrNoResult          = errors.New("symbolizer: no result available (send not called, or fini'd)")
	ErrOutOfBounds       = errors.New("symbolizer: frame index out of bounds")
	ErrConcurrentUse     = errors.New("symbolizer: concurrent use of a single Symbolizer instance")
)

// Err maps a Status to its equivalent sentinel error, or nil for a status
// that isn't a failure. Lets a caller write `if err := status.Err(); err
// != nil` and `errors.Is` against it, instead of comparing the numeric
// Status directly, while the numeric value itself stays available for
// anyone pairing this package with a C-ABI shim that expects it.
func (s Status) Err() error {
	switch s {
	case StatusInitDone, StatusFiniDone, StatusSendDone, StatusReadDone:
		return nil
	case StatusPathNotExecutable:
		return ErrPathNotExecutable
	case StatusPathCorrupted:
		return ErrPathCorrupted
	case StatusUnsupportedTool:
		return ErrUnsupportedTool
	case StatusSymbolizeFailed:
		return ErrSymbolizeFailed
	case StatusOutOfBounds:
		return ErrOutOfBounds
	case StatusHasNullptr:
		return ErrNoResult
	default:
		return nil
	}
}
