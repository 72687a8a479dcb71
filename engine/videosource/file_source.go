package videosource

import (
	"fmt"
	"image"
	"io"
	"time"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/cogentcore/reisen"
)

// fileSource decodes a video file on a background goroutine.
type fileSource struct {
	box   *mailbox
	dec   frameDecoder
	done  chan struct{}
	w, h  int
	count int
	rate  float64
}

var _ Source = &fileSource{}

// NewFileSource opens a video file with FFmpeg through reisen and starts decoding.
//
// Parameters:
//   - path: the video file
//   - options: variadic list of SourceBuilderOption functions
//
// Returns:
//   - Source: the source
//   - error: error if the file has no decodable video stream
func NewFileSource(path string, options ...SourceBuilderOption) (Source, error) {
	dec, err := openReisen(path)
	if err != nil {
		return nil, err
	}
	o := applyOptions(options)
	return newFileSource(dec, dec.width, dec.height, dec.frameCount, common.Coalesce(o.frameRate, dec.frameRate, DefaultFrameRate)), nil
}

func newFileSource(dec frameDecoder, w, h, count int, rate float64) *fileSource {
	s := &fileSource{
		box:   newMailbox(),
		dec:   dec,
		done:  make(chan struct{}),
		w:     w,
		h:     h,
		count: count,
		rate:  rate,
	}
	go func() {
		defer close(s.done)
		s.box.run(dec)
	}()
	return s
}

func (s *fileSource) Frame(index int) (*image.RGBA, error) {
	if err := checkIndex(index, 0); err != nil {
		return nil, err
	}
	return s.box.get(index)
}

func (s *fileSource) Size() (int, int)   { return s.w, s.h }
func (s *fileSource) FrameCount() int    { return s.count }
func (s *fileSource) FrameRate() float64 { return s.rate }

// Drops returns how many decoded frames were skipped because playback jumped ahead.
func (s *fileSource) Drops() uint64 {
	return s.box.Drops()
}

func (s *fileSource) Close() error {
	s.box.close()
	<-s.done
	return s.dec.Close()
}

// reisenDecoder reads the first video stream of a media file.
type reisenDecoder struct {
	media  *reisen.Media
	stream *reisen.VideoStream

	width, height int
	frameCount    int
	frameRate     float64
}

func openReisen(path string) (*reisenDecoder, error) {
	media, err := reisen.NewMedia(path)
	if err != nil {
		return nil, fmt.Errorf("open media %s: %w", path, err)
	}
	streams := media.VideoStreams()
	if len(streams) == 0 {
		media.Close()
		return nil, fmt.Errorf("%w: %s has no video stream", common.ErrConfiguration, path)
	}
	stream := streams[0]

	d := &reisenDecoder{
		media:  media,
		stream: stream,
		width:  stream.Width(),
		height: stream.Height(),
	}
	if num, den := stream.FrameRate(); num > 0 && den > 0 {
		d.frameRate = float64(num) / float64(den)
	}
	d.frameCount = int(stream.FrameCount())
	if d.frameCount <= 0 && d.frameRate > 0 {
		if dur, err := stream.Duration(); err == nil {
			d.frameCount = int(dur.Seconds() * d.frameRate)
		}
	}

	if err := media.OpenDecode(); err != nil {
		media.Close()
		return nil, fmt.Errorf("open decode %s: %w", path, err)
	}
	if err := stream.Open(); err != nil {
		media.CloseDecode()
		media.Close()
		return nil, fmt.Errorf("open video stream %s: %w", path, err)
	}
	common.Logger().Info("video opened", "path", path,
		"width", d.width, "height", d.height, "fps", d.frameRate, "frames", d.frameCount)
	return d, nil
}

func (d *reisenDecoder) Next() (*image.RGBA, error) {
	for {
		packet, gotPacket, err := d.media.ReadPacket()
		if err != nil {
			return nil, err
		}
		if !gotPacket {
			return nil, io.EOF
		}
		if packet.StreamIndex() != d.stream.Index() {
			continue
		}
		frame, gotFrame, err := d.stream.ReadVideoFrame()
		if err != nil {
			return nil, err
		}
		if !gotFrame || frame == nil {
			continue
		}
		return frame.Image(), nil
	}
}

func (d *reisenDecoder) Rewind() error {
	return d.stream.Rewind(time.Duration(0))
}

func (d *reisenDecoder) Close() error {
	err := d.stream.Close()
	d.media.CloseDecode()
	d.media.Close()
	return err
}
