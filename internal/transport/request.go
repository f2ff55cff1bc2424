package transport

import (
	"github.com/danmuck/streamcore/internal/protocol/appframe"
)

// RequestStreamID is the first client-initiated bidirectional stream.
const RequestStreamID uint64 = 4

// SendRequest queues a HEADERS frame carrying headerBlock on the request
// stream and closes the stream's send side.
func (c *Conn) SendRequest(headerBlock []byte) error {
	if _, err := c.Write(RequestStreamID, appframe.Encode(appframe.Headers(headerBlock))); err != nil {
		return err
	}
	c.Finish(RequestStreamID)
	return nil
}

// SendBody queues each chunk as a DATA frame on stream id and closes the
// stream's send side.
func (c *Conn) SendBody(id uint64, chunks ...[]byte) error {
	frames := make([]appframe.Frame, 0, len(chunks))
	for _, chunk := range chunks {
		frames = append(frames, appframe.Data(chunk))
	}
	if _, err := c.Write(id, appframe.EncodeFrames(frames)); err != nil {
		return err
	}
	c.Finish(id)
	return nil
}

// ReadFrames pops the next contiguous run on stream id into dec and returns
// every application frame it completes. Partial frames stay in dec.
func (c *Conn) ReadFrames(id uint64, dec *appframe.Decoder) ([]appframe.Frame, error) {
	dec.Feed(c.Read(id))
	var out []appframe.Frame
	for {
		f, ok, err := dec.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, f)
	}
}
