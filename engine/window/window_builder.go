package window

// WindowBuilderOption is a functional option for configuring a canvas window.
// Use the With* functions to create options.
type WindowBuilderOption func(w *canvasWindow)

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *canvasWindow) {
		w.title = title
	}
}

// WithSize sets the initial window size. Non-positive values keep the default.
//
// Parameters:
//   - width, height: initial size in screen coordinates
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *canvasWindow) {
		if width > 0 && height > 0 {
			w.width = width
			w.height = height
		}
	}
}

// WithSizeFunc derives the initial size from the primary monitor's resolution.
// It overrides WithSize when the monitor can be queried and the function returns a positive size.
//
// Parameters:
//   - fn: function receiving the monitor size and returning the window size
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSizeFunc(fn func(monitorW, monitorH int) (int, int)) WindowBuilderOption {
	return func(w *canvasWindow) {
		w.sizeFunc = fn
	}
}

// WithMinSize sets the smallest size the user can resize the window to.
func WithMinSize(width, height int) WindowBuilderOption {
	return func(w *canvasWindow) {
		w.minWidth = width
		w.minHeight = height
	}
}

// WithResizable controls whether the user can resize the window.
func WithResizable(resizable bool) WindowBuilderOption {
	return func(w *canvasWindow) {
		w.resizable = resizable
	}
}
