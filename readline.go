// Copyright 2016 Aleksandr Demakin. All rights reserved.

package npipe

import (
	"unicode/utf8"
)

// LineStatus is the result of reading a line from a connection.
type LineStatus int

const (
	// LineEmpty means there is no buffered data.
	LineEmpty LineStatus = iota
	// LineNotALine means the data is valid so far, but has no line terminator yet.
	LineNotALine
	// LineInvalidUTF8 means the data is not valid UTF-8 before any line terminator.
	LineInvalidUTF8
	// LineOK means a line was read.
	LineOK
)

func (s LineStatus) String() string {
	switch s {
	case LineEmpty:
		return "empty"
	case LineNotALine:
		return "not a line"
	case LineInvalidUTF8:
		return "invalid utf-8"
	case LineOK:
		return "line"
	default:
		return "unknown"
	}
}

// scanLine looks for the first line in data.
// It returns the line without its terminator ("\n" or "\r\n"),
// and the number of bytes the line takes in data, including the terminator.
// An incomplete multi-byte sequence at the end of data is not an error,
// as the rest of it may not have arrived yet.
func scanLine(data []byte) (LineStatus, string, int) {
	if len(data) == 0 {
		return LineEmpty, "", 0
	}
	for i := 0; i < len(data); {
		c := data[i]
		if c == '\n' {
			end := i
			if end > 0 && data[end-1] == '\r' {
				end--
			}
			return LineOK, string(data[:end]), i + 1
		}
		if c < utf8.RuneSelf {
			i++
			continue
		}
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(data[i:]) {
				return LineNotALine, "", 0
			}
			return LineInvalidUTF8, "", 0
		}
		i += size
	}
	return LineNotALine, "", 0
}

// scanInvalid returns the length of the data prefix up to and including
// the first run of invalid UTF-8 bytes, if it comes before any line terminator.
func scanInvalid(data []byte) int {
	i := 0
	for i < len(data) && data[i] != '\n' {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 && utf8.FullRune(data[i:]) {
			break
		}
		if !utf8.FullRune(data[i:]) {
			return 0
		}
		i += size
	}
	if i == len(data) || data[i] == '\n' {
		return 0
	}
	for i < len(data) {
		r, size := utf8.DecodeRune(data[i:])
		if r != utf8.RuneError || size > 1 || !utf8.FullRune(data[i:]) {
			break
		}
		i++
	}
	return i
}
