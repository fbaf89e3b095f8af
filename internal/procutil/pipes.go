package procutil

import "os"

// maxPipeCandidates bounds how many throwaway pipe pairs createTwoHighFDPipes
// is willing to open while hunting for two pairs whose endpoints all land
// above stderr. Matches the original CreateTwoHighNumberedPipes's array of
// five candidate slots.
const maxPipeCandidates = 5

// highFD is the fd number above which both ends of a candidate pipe must
// land; STDERR_FILENO in the original.
const highFD = 2

// createTwoHighFDPipes opens pipes until it finds two whose four
// descriptors are all > highFD, closing every other pipe it opened along
// the way. A caller that has closed its own stdin/stdout/stderr (not
// unusual for a daemonized fuzzer) could otherwise be handed a pipe
// endpoint at fd 0, 1 or 2, where the child's own stdio redirection would
// clobber it.
func createTwoHighFDPipes() (a, b [2]*os.File, err error) {
	var candidates [][2]*os.File
	defer func() {
		for _, c := range candidates {
			if c[0] != nil {
				_ = c[0].Close()
			}
			if c[1] != nil {
				_ = c[1].Close()
			}
		}
	}()

	var found [][2]*os.File
	for i := 0; i < maxPipeCandidates && len(found) < 2; i++ {
		r, w, perr := os.Pipe()
		if perr != nil {
			return a, b, perr
		}
		candidates = append(candidates, [2]*os.File{r, w})

		if int(r.Fd()) > highFD && int(w.Fd()) > highFD {
			found = append(found, [2]*os.File{r, w})
			// Prevent the deferred cleanup from closing a pipe we're keeping.
			candidates[len(candidates)-1] = [2]*os.File{nil, nil}
		}
	}

	if len(found) < 2 {
		for _, f := range found {
			_ = f[0].Close()
			_ = f[1].Close()
		}
		return a, b, errPipeAllocation
	}

	return found[0], found[1], nil
}
