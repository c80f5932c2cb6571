package network

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
)

// MaxFrameSize bounds a single protocol frame. Query replies carry object
// vectors, so this is far above any sane message size rather than an MTU.
const MaxFrameSize = 1 << 22

var errFrameSize = errors.New("frame size is invalid")

func writeFrame(c net.Conn, data []byte) error {
	if len(data) == 0 || len(data) > MaxFrameSize {
		return errFrameSize
	}
	if err := binary.Write(c, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := c.Write(data)
	return err
}

func readFrame(c net.Conn) ([]byte, error) {
	var length uint32
	if err := binary.Read(c, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length == 0 || length > MaxFrameSize {
		return nil, errFrameSize
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(c, data); err != nil {
		return nil, err
	}
	return data, nil
}
