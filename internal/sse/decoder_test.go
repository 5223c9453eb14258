package sse

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderBasicEvents(t *testing.T) {
	stream := "data: {\"a\":1}\n\ndata: {\"b\":2}\n\n"
	d := NewDecoder(strings.NewReader(stream))

	payload, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(payload))

	payload, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(payload))

	_, err = d.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderMultiLineData(t *testing.T) {
	stream := "data: first\ndata: second\n\n"
	d := NewDecoder(strings.NewReader(stream))

	payload, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", string(payload))
}

func TestDecoderIgnoresOtherFields(t *testing.T) {
	stream := "event: message_start\nid: 7\n: comment\ndata: {\"x\":1}\n\n"
	d := NewDecoder(strings.NewReader(stream))

	payload, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(payload))
}

func TestDecoderCRLF(t *testing.T) {
	stream := "data: {\"a\":1}\r\n\r\ndata: [DONE]\r\n\r\n"
	d := NewDecoder(strings.NewReader(stream))

	payload, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(payload))

	payload, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, "[DONE]", string(payload))
}

func TestDecoderSplitReads(t *testing.T) {
	// One byte per read: events must not depend on read boundaries.
	stream := "data: {\"a\":1}\n\ndata: {\"b\":2}\n\n"
	d := NewDecoder(iotest.OneByteReader(strings.NewReader(stream)))

	payload, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(payload))

	payload, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(payload))
}

func TestDecoderFlushesTrailingBuffer(t *testing.T) {
	// Stream ends without the blank separator line.
	d := NewDecoder(strings.NewReader("data: tail"))

	payload, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, "tail", string(payload))

	_, err = d.Next()
	assert.Equal(t, io.EOF, err)
}
