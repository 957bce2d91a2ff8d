package h264encoder

import "errors"

var (
	// ErrNotInitialized is returned when encoder methods are called before
	// Begin or after the encoder has been closed.
	ErrNotInitialized = errors.New("h264encoder: encoder not initialized")

	// ErrAlreadyStarted is returned when Begin is called twice.
	ErrAlreadyStarted = errors.New("h264encoder: encoder already started")

	// ErrFFmpegNotFound is returned when ffmpeg cannot be located.
	ErrFFmpegNotFound = errors.New("h264encoder: ffmpeg not found in PATH")
)
