package reply

// ParseData parses the DATA reply grammar:
//
//	<name>\n<start> <size>\n[<file>:<line>\n]
//
// The third line is optional: llvm-symbolizer omits it when no debug line
// info is attached to the variable. A malformed or truncated reply yields
// whatever fields were recovered before the truncation, rather than
// discarding the whole response.
func ParseData(buf []byte) Data {
	var d Data

	name, rest := extractLine(buf)
	d.Name = name
	if name == "" || rest == nil {
		return d
	}

	startSize, rest := extractLine(rest)
	d.Start, d.Size = parseStartSize(startSize)
	if rest == nil {
		return d
	}

	fileLine, _ := extractLine(rest)
	if fileLine == "" {
		return d
	}
	d.File, d.Line = parseFileAndLine(fileLine)

	return d
}

// parseStartSize splits "<start> <size>" on the single space between the
// two decimal fields, mirroring ExtractUptr's token-by-token consumption.
func parseStartSize(tok string) (start, size uint64) {
	for i := 0; i < len(tok); i++ {
		if tok[i] == ' ' {
			return parseUint(tok[:i]), parseUint(tok[i+1:])
		}
	}
	return parseUint(tok), 0
}

// parseFileAndLine splits "<file>:<line>" on the first colon. Unlike
// ParseFileLineInfo's right-to-left scan for the CODE grammar, the DATA
// grammar's third line was never given that two-pass treatment upstream
// (ExtractToken(str, ":", &info->file) stops at the first delimiter), so a
// file path that itself contains a colon yields a truncated file and a
// line of 0 here, matching that behavior rather than inventing a smarter
// split for a line the original never parsed more carefully.
func parseFileAndLine(tok string) (file string, line uint64) {
	for i := 0; i < len(tok); i++ {
		if tok[i] == ':' {
			return tok[:i], parseUint(tok[i+1:])
		}
	}
	return tok, 0
}
