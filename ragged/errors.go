package ragged

import "errors"

var (
	ErrIndexOutOfRange = errors.New("ragged: row index out of range")
	ErrBadShape        = errors.New("ragged: negative dimension not allowed")
)
