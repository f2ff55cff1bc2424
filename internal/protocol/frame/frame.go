package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	Magic          uint32 = 0x53434631
	Version        uint16 = 1
	FixedHeaderLen uint16 = 32
	FlagFin        uint32 = 0x01
)

var (
	ErrShortHeader        = errors.New("frame: short fixed header")
	ErrInvalidMagic       = errors.New("frame: invalid magic")
	ErrUnsupportedVersion = errors.New("frame: unsupported version")
	ErrHeaderLenTooSmall  = errors.New("frame: header_len smaller than fixed header")
	ErrExtensionTooLarge  = errors.New("frame: header extension too large")
	ErrPayloadTooLarge    = errors.New("frame: payload too large")
	ErrOffsetOverflow     = errors.New("frame: offset plus length overflows")
)

// Header is the fixed STREAM frame header.
type Header struct {
	Magic      uint32
	Version    uint16
	HeaderLen  uint16
	StreamID   uint64
	Offset     uint64
	Flags      uint32
	PayloadLen uint32
}

// Frame carries one chunk of a stream at an absolute offset.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxExtensionBytes uint64
	MaxPayloadBytes   uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxExtensionBytes: 1024,
		MaxPayloadBytes:   64 * 1024,
	}
}

func NewStreamFrame(streamID, offset uint64, payload []byte, fin bool) Frame {
	h := Header{
		Magic:    Magic,
		Version:  Version,
		StreamID: streamID,
		Offset:   offset,
	}
	if fin {
		h.Flags |= FlagFin
	}
	return Frame{Header: h, Payload: payload}
}

func (f Frame) Fin() bool {
	return f.Header.Flags&FlagFin != 0
}

// End is the stream offset just past the payload.
func (f Frame) End() uint64 {
	return f.Header.Offset + uint64(len(f.Payload))
}

func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [FixedHeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}
	if h.Magic != Magic {
		return Frame{}, ErrInvalidMagic
	}
	if h.Version != Version {
		return Frame{}, ErrUnsupportedVersion
	}
	if h.HeaderLen < FixedHeaderLen {
		return Frame{}, ErrHeaderLenTooSmall
	}

	extLen := uint64(h.HeaderLen - FixedHeaderLen)
	if extLen > limits.MaxExtensionBytes {
		return Frame{}, ErrExtensionTooLarge
	}
	if uint64(h.PayloadLen) > limits.MaxPayloadBytes {
		return Frame{}, ErrPayloadTooLarge
	}
	if h.Offset+uint64(h.PayloadLen) < h.Offset {
		return Frame{}, ErrOffsetOverflow
	}

	// Extension bytes are reserved; skip them.
	if extLen > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(extLen)); err != nil {
			return Frame{}, err
		}
	}

	payload := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
	}

	return Frame{Header: h, Payload: payload}, nil
}

func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	payloadLen := uint64(len(f.Payload))
	if payloadLen > limits.MaxPayloadBytes || payloadLen > uint64(^uint32(0)) {
		return ErrPayloadTooLarge
	}
	if f.Header.Offset+payloadLen < f.Header.Offset {
		return ErrOffsetOverflow
	}

	h := f.Header
	h.Magic = Magic
	h.Version = Version
	h.HeaderLen = FixedHeaderLen
	h.PayloadLen = uint32(payloadLen)

	buf := make([]byte, 0, int(FixedHeaderLen)+len(f.Payload))
	buf = append(buf, EncodeHeader(h)...)
	buf = append(buf, f.Payload...)
	_, err := w.Write(buf)
	return err
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, FixedHeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.HeaderLen)
	binary.BigEndian.PutUint64(buf[8:16], h.StreamID)
	binary.BigEndian.PutUint64(buf[16:24], h.Offset)
	binary.BigEndian.PutUint32(buf[24:28], h.Flags)
	binary.BigEndian.PutUint32(buf[28:32], h.PayloadLen)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != int(FixedHeaderLen) {
		return Header{}, fmt.Errorf("frame: invalid fixed header length: %d", len(b))
	}
	return Header{
		Magic:      binary.BigEndian.Uint32(b[0:4]),
		Version:    binary.BigEndian.Uint16(b[4:6]),
		HeaderLen:  binary.BigEndian.Uint16(b[6:8]),
		StreamID:   binary.BigEndian.Uint64(b[8:16]),
		Offset:     binary.BigEndian.Uint64(b[16:24]),
		Flags:      binary.BigEndian.Uint32(b[24:28]),
		PayloadLen: binary.BigEndian.Uint32(b[28:32]),
	}, nil
}
