// Package sse implements a line-oriented decoder for Server-Sent Events.
// The upstream may break a single event across arbitrarily many reads, so
// decoding is driven by a buffered scanner rather than read boundaries.
package sse

import (
	"bufio"
	"bytes"
	"io"
)

const maxEventSize = 10 * 1024 * 1024

var dataTag = []byte("data:")

// Decoder accumulates `data:` lines from an SSE byte stream and yields one
// payload per event. CRLF and LF line terminators are both accepted. Lines
// with other field names (event:, id:, comments) are ignored.
type Decoder struct {
	scanner *bufio.Scanner
	buffer  bytes.Buffer
}

// NewDecoder wraps the given reader in an SSE event decoder.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &Decoder{scanner: scanner}
}

// Next returns the payload of the next event. It returns io.EOF once the
// stream ends; a non-empty trailing buffer is flushed as a final event.
func (d *Decoder) Next() ([]byte, error) {
	for d.scanner.Scan() {
		line := bytes.TrimSuffix(d.scanner.Bytes(), []byte("\r"))

		if len(line) == 0 {
			if d.buffer.Len() == 0 {
				continue
			}
			payload := make([]byte, d.buffer.Len())
			copy(payload, d.buffer.Bytes())
			d.buffer.Reset()
			return payload, nil
		}

		if !bytes.HasPrefix(line, dataTag) {
			continue
		}
		data := bytes.TrimPrefix(line, dataTag)
		if len(data) > 0 && data[0] == ' ' {
			data = data[1:]
		}
		if d.buffer.Len() > 0 {
			d.buffer.WriteByte('\n')
		}
		d.buffer.Write(data)
	}

	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	if d.buffer.Len() > 0 {
		payload := make([]byte, d.buffer.Len())
		copy(payload, d.buffer.Bytes())
		d.buffer.Reset()
		return payload, nil
	}
	return nil, io.EOF
}
