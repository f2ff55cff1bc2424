package appframe

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const HeaderLen = 5

const DefaultMaxFrameLen = 1 << 20

var (
	ErrShortFrameHeader = errors.New("appframe: short frame header")
	ErrShortFrameValue  = errors.New("appframe: short frame value")
	ErrFrameTooLarge    = errors.New("appframe: frame too large")
)

// Frame type IDs.
const (
	TypeData    uint8 = 0x00
	TypeHeaders uint8 = 0x01
)

// Frame is one application frame carried inside a stream.
type Frame struct {
	Type    uint8
	Payload []byte
}

func Headers(block []byte) Frame {
	return Frame{Type: TypeHeaders, Payload: block}
}

func Data(b []byte) Frame {
	return Frame{Type: TypeData, Payload: b}
}

func Encode(f Frame) []byte {
	buf := make([]byte, HeaderLen+len(f.Payload))
	buf[0] = f.Type
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(f.Payload)))
	copy(buf[HeaderLen:], f.Payload)
	return buf
}

func EncodeFrames(frames []Frame) []byte {
	out := make([]byte, 0)
	for _, f := range frames {
		out = append(out, Encode(f)...)
	}
	return out
}

// DecodeFrames parses a buffer that holds only complete frames.
func DecodeFrames(payload []byte) ([]Frame, error) {
	frames := make([]Frame, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < HeaderLen {
			return nil, ErrShortFrameHeader
		}
		typeID := payload[i]
		l := binary.BigEndian.Uint32(payload[i+1 : i+5])
		i += HeaderLen
		if uint32(len(payload)-i) < l {
			return nil, ErrShortFrameValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+int(l)])
		i += int(l)
		frames = append(frames, Frame{Type: typeID, Payload: val})
	}
	return frames, nil
}

// Decoder parses frames out of a byte stream delivered in arbitrary runs.
type Decoder struct {
	buf    []byte
	maxLen uint32
}

func NewDecoder(maxFrameLen uint32) *Decoder {
	if maxFrameLen == 0 {
		maxFrameLen = DefaultMaxFrameLen
	}
	return &Decoder{maxLen: maxFrameLen}
}

// Feed appends the next contiguous run of stream bytes.
func (d *Decoder) Feed(b []byte) {
	d.buf = append(d.buf, b...)
}

// Next returns the next complete frame. ok is false when more bytes are needed.
func (d *Decoder) Next() (Frame, bool, error) {
	if len(d.buf) < HeaderLen {
		return Frame{}, false, nil
	}
	l := binary.BigEndian.Uint32(d.buf[1:5])
	if l > d.maxLen {
		return Frame{}, false, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, l, d.maxLen)
	}
	total := HeaderLen + int(l)
	if len(d.buf) < total {
		return Frame{}, false, nil
	}
	f := Frame{Type: d.buf[0], Payload: make([]byte, l)}
	copy(f.Payload, d.buf[HeaderLen:total])
	d.buf = d.buf[total:]
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return f, true, nil
}

// Buffered is the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func TypeName(t uint8) string {
	switch t {
	case TypeData:
		return "data"
	case TypeHeaders:
		return "headers"
	default:
		return fmt.Sprintf("unknown(0x%02x)", t)
	}
}
