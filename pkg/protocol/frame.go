package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// MaxLineSize bounds a single newline-delimited document.
const MaxLineSize = 1 << 20

// ErrLineTooLong is returned for a line that exceeds MaxLineSize.
var ErrLineTooLong = errors.New("line exceeds maximum size")

// LineReader splits a byte stream into newline-terminated documents.
type LineReader struct {
	r   *bufio.Reader
	max int
}

// NewLineReader wraps r. If r is already a *bufio.Reader it is used as is,
// which keeps any bytes it has buffered.
func NewLineReader(r io.Reader) *LineReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &LineReader{r: br, max: MaxLineSize}
}

// ReadLine returns the next line without its terminator ("\n" or "\r\n").
// A final unterminated line is returned before io.EOF. A line longer than
// the limit is consumed up to its terminator and reported as
// ErrLineTooLong, so the following line can still be read.
func (lr *LineReader) ReadLine() ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := lr.r.ReadSlice('\n')
		if !tooLong && len(line)+len(chunk) > lr.max {
			tooLong, line = true, nil
		}
		if !tooLong {
			line = append(line, chunk...)
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil, errors.Is(err, io.EOF) && (len(line) > 0 || tooLong):
			if tooLong {
				return nil, ErrLineTooLong
			}
			return trimEOL(line), nil
		default:
			return nil, err
		}
	}
}

// WriteLine writes doc followed by a newline in a single Write call.
func WriteLine(w io.Writer, doc []byte) error {
	buf := make([]byte, 0, len(doc)+1)
	buf = append(buf, doc...)
	buf = append(buf, '\n')
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}
	return nil
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}
