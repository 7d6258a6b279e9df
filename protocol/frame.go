// Package protocol implements the framing of the device transport protocol, as
// far as the test fixtures need it: the fixed six-field frame header and the
// constants for the connection handshake.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderLen is the size of the frame header: six 32-bit fields (command, arg0,
// arg1, payload length, payload checksum, magic), packed little-endian with no
// padding, followed immediately by the payload bytes.
const HeaderLen = 24

const magicMask = 0xffffffff

// Handshake parameters announced by the fake daemon. The checksum field is
// always written as zero, meaning "unchecked"; real peers have long since
// stopped validating it.
const (
	ConnectVersion    = 0x01000001
	ConnectMaxPayload = 1024 * 1024
	DeviceBanner      = "device::ro.product.name=fakeadb"
)

// CommandConnect is the handshake command, the 4-character code "CNXN".
var CommandConnect = CommandWord("CNXN")

// CommandWord converts a 4-character ASCII command code to its wire value.
func CommandWord(code string) uint32 {
	if len(code) != 4 {
		panic(fmt.Sprintf("command code must be 4 characters, got %q", code))
	}
	return binary.LittleEndian.Uint32([]byte(code))
}

// Frame is a decoded protocol frame. The magic and checksum header fields are
// not represented: magic is derived from Command and checksum is always zero.
type Frame struct {
	Command uint32
	Arg0    uint32
	Arg1    uint32
	Payload []byte
}

// FrameError indicates a malformed frame header.
type FrameError struct {
	Reason string
}

func (e FrameError) Error() string {
	return "malformed frame: " + e.Reason
}

// Encode packs a frame for the wire.
func Encode(command, arg0, arg1 uint32, payload []byte) []byte {
	buf := make([]byte, HeaderLen+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], command)
	binary.LittleEndian.PutUint32(buf[4:8], arg0)
	binary.LittleEndian.PutUint32(buf[8:12], arg1)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[16:20], 0)
	binary.LittleEndian.PutUint32(buf[20:24], command^magicMask)
	copy(buf[HeaderLen:], payload)
	return buf
}

// Decode parses a complete frame from data. The magic field must be the
// complement of the command field and the payload length field must match the
// number of bytes remaining after the header; either mismatch is a FrameError.
// The checksum field is not validated.
func Decode(data []byte) (Frame, error) {
	if len(data) < HeaderLen {
		return Frame{}, FrameError{Reason: fmt.Sprintf("%d bytes is too short for a header", len(data))}
	}
	command := binary.LittleEndian.Uint32(data[0:4])
	magic := binary.LittleEndian.Uint32(data[20:24])
	if magic != command^magicMask {
		return Frame{}, FrameError{Reason: fmt.Sprintf("magic 0x%08x is not the complement of command 0x%08x", magic, command)}
	}
	length := binary.LittleEndian.Uint32(data[12:16])
	if int(length) != len(data)-HeaderLen {
		return Frame{}, FrameError{Reason: fmt.Sprintf("declared payload length %d but %d bytes follow the header", length, len(data)-HeaderLen)}
	}
	return Frame{
		Command: command,
		Arg0:    binary.LittleEndian.Uint32(data[4:8]),
		Arg1:    binary.LittleEndian.Uint32(data[8:12]),
		Payload: append([]byte(nil), data[HeaderLen:]...),
	}, nil
}

// ReadFrame reads exactly one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	header := make([]byte, HeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return Frame{}, err
	}
	command := binary.LittleEndian.Uint32(header[0:4])
	magic := binary.LittleEndian.Uint32(header[20:24])
	if magic != command^magicMask {
		return Frame{}, FrameError{Reason: fmt.Sprintf("magic 0x%08x is not the complement of command 0x%08x", magic, command)}
	}
	payload := make([]byte, binary.LittleEndian.Uint32(header[12:16]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}
	return Frame{
		Command: command,
		Arg0:    binary.LittleEndian.Uint32(header[4:8]),
		Arg1:    binary.LittleEndian.Uint32(header[8:12]),
		Payload: payload,
	}, nil
}
