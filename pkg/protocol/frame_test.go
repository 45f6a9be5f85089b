package protocol_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/roomchat/pkg/protocol"
)

func TestLineReader_ReadLine(t *testing.T) {
	r := protocol.NewLineReader(strings.NewReader("{\"a\":1}\n\r\n{\"b\":2}\r\ntail"))

	want := []string{`{"a":1}`, ``, `{"b":2}`, `tail`}
	for _, w := range want {
		line, err := r.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, w, string(line))
	}

	_, err := r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineReader_LongLineSpansBuffer(t *testing.T) {
	long := strings.Repeat("x", 10000)
	r := protocol.NewLineReader(strings.NewReader(long + "\nnext\n"))

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Len(t, line, len(long))

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "next", string(line))
}

func TestLineReader_TooLong(t *testing.T) {
	r := protocol.NewLineReader(strings.NewReader(strings.Repeat("x", protocol.MaxLineSize+1)))

	_, err := r.ReadLine()
	assert.ErrorIs(t, err, protocol.ErrLineTooLong)
}

func TestLineReader_TooLongIsSkipped(t *testing.T) {
	long := strings.Repeat("x", protocol.MaxLineSize+10)
	r := protocol.NewLineReader(strings.NewReader(long + "\n{\"type\":\"ListRooms\"}\n"))

	_, err := r.ReadLine()
	assert.ErrorIs(t, err, protocol.ErrLineTooLong)

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"ListRooms"}`, string(line))

	_, err = r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteLine(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, protocol.WriteLine(&buf, []byte(`{"type":"ListRooms"}`)))
	require.NoError(t, protocol.WriteLine(&buf, []byte(`{"type":"ListUsers"}`)))

	assert.Equal(t, "{\"type\":\"ListRooms\"}\n{\"type\":\"ListUsers\"}\n", buf.String())
}
