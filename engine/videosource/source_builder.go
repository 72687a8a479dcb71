package videosource

// sourceOptions collects the settings shared by every source kind.
type sourceOptions struct {
	frameRate float64
}

// SourceBuilderOption is a functional option applied to a source during construction.
type SourceBuilderOption func(*sourceOptions)

// WithFrameRate overrides the frame rate reported by the source.
//
// Parameters:
//   - fps: the rate in frames per second, ignored unless positive
//
// Returns:
//   - SourceBuilderOption: a function that applies the frame rate to a source
func WithFrameRate(fps float64) SourceBuilderOption {
	return func(o *sourceOptions) {
		if fps > 0 {
			o.frameRate = fps
		}
	}
}

func applyOptions(options []SourceBuilderOption) sourceOptions {
	var o sourceOptions
	for _, opt := range options {
		opt(&o)
	}
	return o
}
