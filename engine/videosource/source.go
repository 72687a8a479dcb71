// Package videosource supplies decoded RGBA frames by index from still images, image sequences
// and video files.
package videosource

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/h2non/filetype"
)

// ErrEndOfStream is returned by Frame for an index past the last frame.
var ErrEndOfStream = errors.New("videosource: end of stream")

// DefaultFrameRate is used when neither the source nor an option provides a rate.
const DefaultFrameRate = 30.0

// Source supplies decoded frames by index.
type Source interface {
	// Frame returns the frame at index.
	//
	// Parameters:
	//   - index: the zero-based frame index
	//
	// Returns:
	//   - *image.RGBA: the frame, owned by the caller until the next call
	//   - error: ErrEndOfStream past the last frame, ErrConfiguration for a negative index,
	//     or a decode error
	Frame(index int) (*image.RGBA, error)

	// Size returns the frame size in pixels. Zero until the size is known.
	//
	// Returns:
	//   - int, int: the width and height
	Size() (int, int)

	// FrameCount returns the number of frames, or 0 when unknown.
	//
	// Returns:
	//   - int: the frame count
	FrameCount() int

	// FrameRate returns the playback rate in frames per second.
	//
	// Returns:
	//   - float64: the frame rate
	FrameRate() float64

	// Close releases the source.
	//
	// Returns:
	//   - error: error if releasing fails
	Close() error
}

// Kind is the detected type of a source path.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindSequence
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindSequence:
		return "sequence"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// headerSize is how many leading bytes filetype needs to match every format it knows.
const headerSize = 261

// Detect classifies path by content: directories are image sequences, files are matched on
// their magic bytes.
//
// Parameters:
//   - path: a file or directory
//
// Returns:
//   - Kind: the detected kind
//   - error: error if the path cannot be read, ErrConfiguration for unsupported content
func Detect(path string) (Kind, error) {
	info, err := os.Stat(path)
	if err != nil {
		return KindUnknown, err
	}
	if info.IsDir() {
		return KindSequence, nil
	}
	header, err := readHeader(path)
	if err != nil {
		return KindUnknown, err
	}
	switch {
	case filetype.IsImage(header):
		return KindImage, nil
	case filetype.IsVideo(header):
		return KindVideo, nil
	}
	return KindUnknown, fmt.Errorf("%w: %s is neither an image nor a video", common.ErrConfiguration, path)
}

func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	header := make([]byte, headerSize)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return header[:n], nil
}

// Open detects the kind of path and opens the matching source.
//
// Parameters:
//   - path: an image, an image-sequence directory or a video file
//   - options: variadic list of SourceBuilderOption functions
//
// Returns:
//   - Source: the opened source
//   - error: any detection or open error
func Open(path string, options ...SourceBuilderOption) (Source, error) {
	kind, err := Detect(path)
	if err != nil {
		return nil, err
	}
	common.Logger().Debug("opening source", "path", path, "kind", kind)
	switch kind {
	case KindImage:
		return NewImageSource(path, options...)
	case KindSequence:
		return NewSequenceSource(path, options...)
	default:
		return NewFileSource(path, options...)
	}
}

func checkIndex(index, count int) error {
	if index < 0 {
		return fmt.Errorf("%w: negative frame index %d", common.ErrConfiguration, index)
	}
	if count > 0 && index >= count {
		return fmt.Errorf("%w: frame %d of %d", ErrEndOfStream, index, count)
	}
	return nil
}
