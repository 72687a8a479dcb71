package fit

import (
	"testing"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanvasSize(t *testing.T) {
	w, h := CanvasSize(1800, 1000, nil)
	assert.Equal(t, 900, w)
	assert.Equal(t, 1000, h)

	w, h = CanvasSize(1800, 1000, &common.Rect{X: 0, Y: 0, W: 750, H: 1334})
	assert.Equal(t, 750, w)
	assert.Equal(t, 1334, h)
}

func TestDisplaySize(t *testing.T) {
	tests := []struct {
		name   string
		policy ResizePolicy
		wantW  int
		wantH  int
	}{
		{"none", ResizeNone, 900, 1000},
		{"percent limited by height", ResizePercent, 450, 500},
		{"percent-width", ResizePercentWidth, 1200, 1333},
		{"percent-height", ResizePercentHeight, 450, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := DisplaySize(tt.policy, 900, 1000, 1200, 500)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}

	w, h := DisplaySize(ResizePercent, 900, 1000, 300, 800)
	assert.Equal(t, 300, w)
	assert.Equal(t, 333, h)
}

func TestParseResizePolicy(t *testing.T) {
	p, err := ParseResizePolicy("percentW")
	require.NoError(t, err)
	assert.Equal(t, ResizePercentWidth, p)

	p, err = ParseResizePolicy("percent-height")
	require.NoError(t, err)
	assert.Equal(t, ResizePercentHeight, p)

	_, err = ParseResizePolicy("stretch")
	assert.Error(t, err)
}
