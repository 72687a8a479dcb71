// package common contains plain types shared across the compositor: rectangles and texture
// coordinates, staging data for GPU uploads, the error taxonomy and the shared logger.
package common

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// TextureStagingData holds RGBA pixel data pending GPU upload.
// The renderer uses it for the per-frame video import and for element texture layers.
type TextureStagingData struct {
	// Pixels is the RGBA pixel data, 4 bytes per pixel, row-major.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
	// Layer is the destination array layer. Zero for plain 2D textures.
	Layer uint32
}

// SamplerStagingData holds the configuration for a sampler binding pending GPU creation.
// Zero fields fall back to linear filtering with repeat addressing.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode outside the [0, 1] range.
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy specifies the maximum anisotropy level.
	MaxAnisotropy uint16
}

// StagingFromRGBA wraps an RGBA image as staging data without copying when the image is tightly packed.
//
// Parameters:
//   - img: the source image
//   - layer: the destination array layer
//
// Returns:
//   - TextureStagingData: the staging data referencing the image pixels
func StagingFromRGBA(img *image.RGBA, layer uint32) TextureStagingData {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := img.Pix
	if img.Stride != w*4 || b.Min != (image.Point{}) {
		packed := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(packed, packed.Bounds(), img, b.Min, draw.Src)
		pix = packed.Pix
	}
	return TextureStagingData{
		Pixels: pix,
		Width:  uint32(w),
		Height: uint32(h),
		Layer:  layer,
	}
}

// ToRGBA converts any image to *image.RGBA, returning the input unchanged when it already is one.
//
// Parameters:
//   - img: the source image
//
// Returns:
//   - *image.RGBA: the converted image
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

// DecodeImage decodes an image from raw bytes or, when data is empty, from the file at path.
// Supports PNG, JPEG, BMP and WebP.
//
// Parameters:
//   - path: the file to read when data is empty
//   - data: encoded image bytes, may be nil
//
// Returns:
//   - *image.RGBA: the decoded image
//   - error: error if reading or decoding fails
func DecodeImage(path string, data []byte) (*image.RGBA, error) {
	var img image.Image
	var err error

	if len(data) > 0 {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedded image: %w", err)
		}
	} else if path != "" {
		file, fileErr := os.Open(path)
		if fileErr != nil {
			return nil, fmt.Errorf("failed to open image file %s: %w", path, fileErr)
		}
		defer file.Close()

		img, _, err = image.Decode(file)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image file %s: %w", path, err)
		}
	} else {
		return nil, fmt.Errorf("image has neither data nor path")
	}

	return ToRGBA(img), nil
}
