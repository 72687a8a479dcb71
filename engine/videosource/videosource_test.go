package videosource

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int, shade uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.SetRGBA(0, 0, color.RGBA{R: shade, A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "still.png")
	writePNG(t, img, 4, 2, 0)
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o644))

	kind, err := Detect(dir)
	require.NoError(t, err)
	assert.Equal(t, KindSequence, kind)

	kind, err = Detect(img)
	require.NoError(t, err)
	assert.Equal(t, KindImage, kind)

	_, err = Detect(txt)
	assert.ErrorIs(t, err, common.ErrConfiguration)

	_, err = Detect(filepath.Join(dir, "missing.mp4"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestImageSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "still.png")
	writePNG(t, path, 8, 4, 10)

	s, err := Open(path, WithFrameRate(12))
	require.NoError(t, err)
	defer s.Close()

	w, h := s.Size()
	assert.Equal(t, 8, w)
	assert.Equal(t, 4, h)
	assert.Equal(t, 1, s.FrameCount())
	assert.InDelta(t, 12.0, s.FrameRate(), 1e-9)

	f, err := s.Frame(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(10), f.RGBAAt(0, 0).R)

	_, err = s.Frame(1)
	assert.ErrorIs(t, err, ErrEndOfStream)
	_, err = s.Frame(-1)
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestSequenceSource(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"frame_002.png", "frame_000.png", "frame_001.png"} {
		writePNG(t, filepath.Join(dir, name), 6, 3, uint8([]int{2, 0, 1}[i]))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("skip me"), 0o644))

	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 3, s.FrameCount())
	assert.InDelta(t, DefaultFrameRate, s.FrameRate(), 1e-9)
	w, h := s.Size()
	assert.Equal(t, [2]int{6, 3}, [2]int{w, h})

	for i := 0; i < 3; i++ {
		f, err := s.Frame(i)
		require.NoError(t, err)
		assert.Equal(t, uint8(i), f.RGBAAt(0, 0).R, "frames play in name order")
	}
	again, err := s.Frame(2)
	require.NoError(t, err)
	last, _ := s.Frame(2)
	assert.Same(t, again, last)

	_, err = s.Frame(3)
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestSequenceSourceEmpty(t *testing.T) {
	_, err := NewSequenceSource(t.TempDir())
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

type fakeDecoder struct {
	n       int
	pos     int
	failAt  int
	rewinds int
	nexts   int
	closed  bool
}

func (d *fakeDecoder) Next() (*image.RGBA, error) {
	d.nexts++
	if d.failAt >= 0 && d.pos == d.failAt {
		return nil, errors.New("corrupt packet")
	}
	if d.pos >= d.n {
		return nil, io.EOF
	}
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Pix[0] = uint8(d.pos)
	d.pos++
	return img, nil
}

func (d *fakeDecoder) Rewind() error {
	d.rewinds++
	d.pos = 0
	return nil
}

func (d *fakeDecoder) Close() error {
	d.closed = true
	return nil
}

func TestFileSourceSequential(t *testing.T) {
	dec := &fakeDecoder{n: 5, failAt: -1}
	s := newFileSource(dec, 1, 1, 5, 25)

	for i := 0; i < 5; i++ {
		f, err := s.Frame(i)
		require.NoError(t, err)
		assert.Equal(t, uint8(i), f.Pix[0])
	}
	_, err := s.Frame(5)
	assert.ErrorIs(t, err, ErrEndOfStream)
	assert.Zero(t, s.Drops())

	require.NoError(t, s.Close())
	assert.True(t, dec.closed)
	assert.Equal(t, 6, dec.nexts, "five frames and one EOF, never ahead of the consumer")
}

func TestFileSourceSkipAhead(t *testing.T) {
	dec := &fakeDecoder{n: 10, failAt: -1}
	s := newFileSource(dec, 1, 1, 10, 25)

	f, err := s.Frame(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), f.Pix[0])

	f, err = s.Frame(4)
	require.NoError(t, err)
	assert.Equal(t, uint8(4), f.Pix[0])
	assert.Equal(t, uint64(3), s.Drops(), "frames 1 to 3 were overwritten unread")
	require.NoError(t, s.Close())
}

func TestFileSourceRewind(t *testing.T) {
	dec := &fakeDecoder{n: 3, failAt: -1}
	s := newFileSource(dec, 1, 1, 3, 25)

	_, err := s.Frame(2)
	require.NoError(t, err)
	_, err = s.Frame(3)
	assert.ErrorIs(t, err, ErrEndOfStream)

	f, err := s.Frame(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), f.Pix[0])
	f, err = s.Frame(1)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), f.Pix[0])

	require.NoError(t, s.Close())
	assert.Equal(t, 1, dec.rewinds)
}

func TestFileSourceDecodeError(t *testing.T) {
	dec := &fakeDecoder{n: 5, failAt: 2}
	s := newFileSource(dec, 1, 1, 5, 25)

	_, err := s.Frame(1)
	require.NoError(t, err)
	_, err = s.Frame(2)
	assert.EqualError(t, err, "corrupt packet")
	_, err = s.Frame(0)
	assert.EqualError(t, err, "corrupt packet", "errors are terminal")
	require.NoError(t, s.Close())
}

func TestFileSourceCloseUnblocks(t *testing.T) {
	dec := &fakeDecoder{n: 2, failAt: -1}
	s := newFileSource(dec, 1, 1, 2, 25)
	require.NoError(t, s.Close())
	_, err := s.Frame(0)
	assert.ErrorIs(t, err, errMailboxClosed)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "video", KindVideo.String())
	assert.Equal(t, "unknown", Kind(9).String())
}
