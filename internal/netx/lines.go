// Package netx holds the newline-delimited JSON framing shared by the server
// and the client.
package netx

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxLineSize bounds a single request or response line.
const MaxLineSize = 64 * 1024

// ErrLineTooLong is returned when a peer sends a line over MaxLineSize.
var ErrLineTooLong = bufio.ErrTooLong

// LineReader reads one JSON document per line.
type LineReader struct {
	sc *bufio.Scanner
}

func NewLineReader(r io.Reader) *LineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), MaxLineSize)
	return &LineReader{sc: sc}
}

// Next returns the next raw line without the trailing newline. It returns
// io.EOF when the peer closed the stream cleanly.
func (lr *LineReader) Next() ([]byte, error) {
	if lr.sc.Scan() {
		return lr.sc.Bytes(), nil
	}
	if err := lr.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// ReadJSON reads the next line and decodes it into v. Decoding errors are
// wrapped in *DecodeError so callers can tell them from I/O failures.
func (lr *LineReader) ReadJSON(v any) error {
	line, err := lr.Next()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(line, v); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// DecodeError reports a line that was read but is not valid JSON for the
// target type.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode line: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err came from a malformed line.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// WriteJSON encodes v followed by a newline in a single write.
func WriteJSON(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
