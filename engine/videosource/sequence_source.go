package videosource

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/h2non/filetype"
)

// sequenceSource plays the images of a directory in name order. Only the last decoded frame is kept.
type sequenceSource struct {
	paths []string
	w, h  int
	rate  float64

	lastIndex int
	last      *image.RGBA
}

var _ Source = &sequenceSource{}

// NewSequenceSource lists the image files of dir. Files that are not images are skipped.
//
// Parameters:
//   - dir: the directory
//   - options: variadic list of SourceBuilderOption functions
//
// Returns:
//   - Source: the source
//   - error: ErrConfiguration when the directory holds no images, or a read error
func NewSequenceSource(dir string, options ...SourceBuilderOption) (Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		header, err := readHeader(p)
		if err != nil {
			return nil, err
		}
		if filetype.IsImage(header) {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", common.ErrConfiguration, dir)
	}
	sort.Strings(paths)

	s := &sequenceSource{
		paths:     paths,
		rate:      common.Coalesce(applyOptions(options).frameRate, DefaultFrameRate),
		lastIndex: -1,
	}
	first, err := s.Frame(0)
	if err != nil {
		return nil, err
	}
	s.w, s.h = first.Bounds().Dx(), first.Bounds().Dy()
	return s, nil
}

func (s *sequenceSource) Frame(index int) (*image.RGBA, error) {
	if err := checkIndex(index, len(s.paths)); err != nil {
		return nil, err
	}
	if index == s.lastIndex {
		return s.last, nil
	}
	img, err := common.DecodeImage(s.paths[index], nil)
	if err != nil {
		return nil, err
	}
	s.lastIndex, s.last = index, img
	return img, nil
}

func (s *sequenceSource) Size() (int, int)   { return s.w, s.h }
func (s *sequenceSource) FrameCount() int    { return len(s.paths) }
func (s *sequenceSource) FrameRate() float64 { return s.rate }

func (s *sequenceSource) Close() error {
	s.last = nil
	return nil
}
