package compositor

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/Carmen-Shannon/alphavid/engine/loader"
	"github.com/Carmen-Shannon/alphavid/engine/renderer/uniform"
	"github.com/Carmen-Shannon/automation/tools/worker"
	"golang.org/x/image/draw"
)

// LayerWriter uploads one element image into a texture array layer.
type LayerWriter interface {
	WriteElementLayer(layer int, img *image.RGBA) error
}

// ElementImage is an effect's image scaled to the atlas layer size.
type ElementImage struct {
	ID    string
	Image *image.RGBA
}

// ElementAtlas turns descriptor effects into texture array layers. Image files are decoded and
// scaled on a worker pool; text effects get a transparent layer until the host supplies an image.
type ElementAtlas struct {
	size     int
	capacity int
	pool     worker.DynamicWorkerPool
	scaler   draw.Scaler
}

// NewElementAtlas creates an atlas of square layers.
//
// Parameters:
//   - size: the layer edge length in pixels
//   - capacity: the number of layers
//   - workers: the number of scaling workers
//
// Returns:
//   - *ElementAtlas: the atlas
func NewElementAtlas(size, capacity, workers int) *ElementAtlas {
	if workers <= 0 {
		workers = 1
	}
	return &ElementAtlas{
		size:     size,
		capacity: capacity,
		pool:     worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
		scaler:   draw.CatmullRom,
	}
}

// Size returns the layer edge length.
func (a *ElementAtlas) Size() int { return a.size }

// Capacity returns the number of layers.
func (a *ElementAtlas) Capacity() int { return a.capacity }

// Scale resizes img to the layer size.
//
// Parameters:
//   - img: the source image
//
// Returns:
//   - *image.RGBA: a new size x size image
func (a *ElementAtlas) Scale(img image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, a.size, a.size))
	a.scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Prepare decodes and scales every effect in parallel. Nothing touches the GPU.
//
// Parameters:
//   - effects: the descriptor effects
//
// Returns:
//   - []ElementImage: one image per effect, in effect order
//   - error: the first decode failure, wrapped with ErrConfiguration
func (a *ElementAtlas) Prepare(effects []loader.Effect) ([]ElementImage, error) {
	if len(effects) > a.capacity {
		return nil, fmt.Errorf("%w: %d effects exceed %d element layers",
			common.ErrResourceExhausted, len(effects), a.capacity)
	}

	out := make([]ElementImage, len(effects))
	errs := make([]error, len(effects))

	var wg sync.WaitGroup
	for i, e := range effects {
		out[i].ID = e.ID
		if e.Type != loader.EffectImage || e.Image == "" {
			out[i].Image = image.NewRGBA(image.Rect(0, 0, a.size, a.size))
			continue
		}
		wg.Add(1)
		idx, eff := i, e
		a.pool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				img, err := a.load(eff.Image)
				if err != nil {
					errs[idx] = fmt.Errorf("%w: effect %q: %v", common.ErrConfiguration, eff.ID, err)
					return nil, err
				}
				out[idx].Image = a.Scale(img)
				return nil, nil
			},
		})
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (a *ElementAtlas) load(path string) (image.Image, error) {
	return common.DecodeImage(path, nil)
}

// Upload assigns a layer to every image in a fresh index and writes the layers. Every id is
// assigned before the first write, so a capacity failure leaves the GPU untouched.
//
// Parameters:
//   - w: the layer writer, usually the renderer
//   - images: the prepared images
//
// Returns:
//   - *uniform.TextureIndex: the index mapping effect ids to layers
//   - error: ErrResourceExhausted when the layers run out, or the first write error
func (a *ElementAtlas) Upload(w LayerWriter, images []ElementImage) (*uniform.TextureIndex, error) {
	idx := uniform.NewTextureIndex(a.capacity)
	layers := make([]int, len(images))
	for i, img := range images {
		layer, err := idx.Assign(img.ID)
		if err != nil {
			return nil, err
		}
		layers[i] = layer
	}
	for i, img := range images {
		if err := w.WriteElementLayer(layers[i], img.Image); err != nil {
			return nil, fmt.Errorf("upload effect %q: %w", img.ID, err)
		}
	}
	return idx, nil
}
