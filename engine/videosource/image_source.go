package videosource

import (
	"image"

	"github.com/Carmen-Shannon/alphavid/common"
)

// imageSource is a single still image played as a one-frame video.
type imageSource struct {
	img  *image.RGBA
	rate float64
}

var _ Source = &imageSource{}

// NewImageSource decodes a still image.
//
// Parameters:
//   - path: the image file
//   - options: variadic list of SourceBuilderOption functions
//
// Returns:
//   - Source: the source
//   - error: error if the image cannot be decoded
func NewImageSource(path string, options ...SourceBuilderOption) (Source, error) {
	img, err := common.DecodeImage(path, nil)
	if err != nil {
		return nil, err
	}
	return NewImageSourceFrom(img, options...), nil
}

// NewImageSourceFrom wraps an already decoded image.
func NewImageSourceFrom(img *image.RGBA, options ...SourceBuilderOption) Source {
	o := applyOptions(options)
	return &imageSource{img: img, rate: common.Coalesce(o.frameRate, DefaultFrameRate)}
}

func (s *imageSource) Frame(index int) (*image.RGBA, error) {
	if err := checkIndex(index, 1); err != nil {
		return nil, err
	}
	return s.img, nil
}

func (s *imageSource) Size() (int, int) {
	return s.img.Bounds().Dx(), s.img.Bounds().Dy()
}

func (s *imageSource) FrameCount() int    { return 1 }
func (s *imageSource) FrameRate() float64 { return s.rate }
func (s *imageSource) Close() error       { return nil }
