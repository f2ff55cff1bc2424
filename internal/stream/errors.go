package stream

import "errors"

var (
	ErrFinalSize       = errors.New("stream: data beyond final size")
	ErrFinalSizeChange = errors.New("stream: final size changed")
	ErrStreamFinished  = errors.New("stream: send side finished")
)
