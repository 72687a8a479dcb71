// Package window provides the desktop canvas the compositor presents to.
package window

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
)

// Window is a desktop canvas backed by a platform window.
// It satisfies renderer.Surface so the renderer can create its wgpu surface from it.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	// It runs on the thread that calls ProcessMessages.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the callback for key press and repeat events.
	//
	// Parameters:
	//   - callback: function receiving the key code (see common.Key*)
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetTitle replaces the title bar text.
	SetTitle(title string)

	// SurfaceDescriptor returns a platform-appropriate wgpu.SurfaceDescriptor built by the
	// wgpuglfw bridge.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil once the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true until the window is closed or asked to close.
	IsRunning() bool

	// RequestClose makes ProcessMessages return after the current iteration. It is safe to call
	// from any goroutine.
	RequestClose()

	// Close destroys the window. Later calls do nothing. It must run on the main thread.
	Close()

	// ProcessMessages runs the message loop until the window closes, calling the update
	// callback each iteration. It must run on the main thread.
	ProcessMessages()

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

// canvasWindow is the implementation of the Window interface.
type canvasWindow struct {
	title string

	// width and height track the framebuffer, which differs from the window size on high-DPI displays.
	width  int
	height int

	minWidth  int
	minHeight int
	resizable bool

	// sizeFunc picks the initial size from the primary monitor's resolution.
	sizeFunc func(monitorW, monitorH int) (int, int)

	internalWindow any

	closeRequested atomic.Bool

	onUpdate  func()
	onResize  func(width, height int)
	onKeyDown func(keyCode uint32)
}

var _ Window = &canvasWindow{}

// NewWindow creates and shows the canvas window.
// It panics if the platform window cannot be created.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
func NewWindow(options ...WindowBuilderOption) Window {
	w := &canvasWindow{
		title:     "alphavid",
		width:     1280,
		height:    720,
		minWidth:  64,
		minHeight: 64,
		resizable: true,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("failed to create platform window: %v", err))
	}
	return w
}

func (w *canvasWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *canvasWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *canvasWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *canvasWindow) SetTitle(title string) {
	w.title = title
	platformSetTitle(w, title)
}

func (w *canvasWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *canvasWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *canvasWindow) RequestClose() {
	w.closeRequested.Store(true)
}

func (w *canvasWindow) Close() {
	platformCloseWindow(w)
}

func (w *canvasWindow) ProcessMessages() {
	for w.IsRunning() && !w.closeRequested.Load() {
		if !platformProcessMessages(w) {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *canvasWindow) Width() int {
	return w.width
}

func (w *canvasWindow) Height() int {
	return w.height
}
