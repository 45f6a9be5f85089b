package unified

import (
	"bufio"
	"bytes"
	"net"
)

type protocolType int

const (
	protocolLine protocolType = iota
	protocolHTTP
)

// detectProtocol peeks at the first bytes to determine protocol type.
// HTTP requests start with a method name; line protocol clients start with
// a JSON document.
func detectProtocol(reader *bufio.Reader) (protocolType, error) {
	peek, err := reader.Peek(4)
	if err != nil {
		return protocolLine, err
	}

	if bytes.HasPrefix(peek, []byte("GET ")) ||
		bytes.HasPrefix(peek, []byte("POST")) ||
		bytes.HasPrefix(peek, []byte("PUT ")) ||
		bytes.HasPrefix(peek, []byte("HEAD")) {
		return protocolHTTP, nil
	}
	return protocolLine, nil
}

// peekedConn replays bytes already buffered while detecting the protocol.
type peekedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (c *peekedConn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}
