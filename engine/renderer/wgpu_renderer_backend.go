package renderer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/Carmen-Shannon/alphavid/engine/quad"
	"github.com/Carmen-Shannon/alphavid/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/alphavid/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// Shader variable names of the compositor bindings.
const (
	varFrame    = "frame"
	varSampler  = "samp"
	varVideo    = "video"
	varRegions  = "regions"
	varElements = "elements"
)

var errNoDevice = errors.New("no device")

// wgpuRendererBackendImpl is the implementation of RendererBackend on wgpu-native.
type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	forceFallbackAdapter bool
	presentMode          wgpu.PresentMode
	surfaceFormat        wgpu.TextureFormat
	alphaMode            wgpu.CompositeAlphaMode
	limits               Limits

	renderPipeline *wgpu.RenderPipeline
	layoutDesc     wgpu.BindGroupLayoutDescriptor
	provider       bind_group_provider.BindGroupProvider
	bindings       map[string]int

	frameTexture  *wgpu.Texture
	frameW        uint32
	frameH        uint32
	elementsTex   *wgpu.Texture
	elementSize   uint32
	elementLayers uint32
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(forceFallbackAdapter bool, mode PresentMode) RendererBackend {
	presentMode := wgpu.PresentModeFifo
	if mode == PresentModeUncapped {
		presentMode = wgpu.PresentModeImmediate
	}
	return &wgpuRendererBackendImpl{
		mu:                   &sync.Mutex{},
		forceFallbackAdapter: forceFallbackAdapter,
		presentMode:          presentMode,
		bindings:             map[string]int{},
	}
}

func (b *wgpuRendererBackendImpl) AcquireContext(surface *wgpu.SurfaceDescriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// wgpu-native surfaces must be driven from the thread that created them.
	runtime.LockOSThread()
	if b.instance == nil {
		b.instance = wgpu.CreateInstance(nil)
	}
	if b.instance == nil {
		return errors.New("wgpu instance unavailable")
	}
	if surface == nil {
		return errors.New("nil surface descriptor")
	}
	b.surface = b.instance.CreateSurface(surface)
	if b.surface == nil {
		return errors.New("surface creation failed")
	}
	return nil
}

func (b *wgpuRendererBackendImpl) RequestDevice(ctx context.Context) error {
	type result struct {
		adapter *wgpu.Adapter
		device  *wgpu.Device
		err     error
	}
	done := make(chan result, 1)

	go func() {
		a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			ForceFallbackAdapter: b.forceFallbackAdapter,
			CompatibleSurface:    b.surface,
		})
		if err != nil {
			done <- result{err: fmt.Errorf("request adapter: %w", err)}
			return
		}
		adapterLimits := a.GetLimits().Limits
		limits := wgpu.DefaultLimits()
		limits.MaxTextureDimension2D = adapterLimits.MaxTextureDimension2D
		limits.MaxTextureArrayLayers = adapterLimits.MaxTextureArrayLayers
		limits.MaxStorageBufferBindingSize = adapterLimits.MaxStorageBufferBindingSize
		limits.MaxBufferSize = adapterLimits.MaxBufferSize

		d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
			Label: "Compositor Device",
			RequiredLimits: &wgpu.RequiredLimits{
				Limits: limits,
			},
		})
		if err != nil {
			a.Release()
			done <- result{err: fmt.Errorf("request device: %w", err)}
			return
		}
		done <- result{adapter: a, device: d}
	}()

	select {
	case <-ctx.Done():
		// The request keeps running; release whatever it produces.
		go func() {
			r := <-done
			if r.device != nil {
				r.device.Release()
			}
			if r.adapter != nil {
				r.adapter.Release()
			}
		}()
		return ctx.Err()
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		b.adapter = r.adapter
		b.device = r.device
		b.queue = r.device.GetQueue()
		l := r.device.GetLimits().Limits
		b.limits = Limits{
			MaxTextureDimension2D:       l.MaxTextureDimension2D,
			MaxTextureArrayLayers:       l.MaxTextureArrayLayers,
			MaxStorageBufferBindingSize: l.MaxStorageBufferBindingSize,
		}
		return nil
	}
}

func (b *wgpuRendererBackendImpl) Limits() Limits {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limits
}

func (b *wgpuRendererBackendImpl) BuildPipeline(p pipeline.Pipeline, opts BuildOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		return errNoDevice
	}
	if err := b.configureSurface(opts.Width, opts.Height); err != nil {
		return err
	}
	if b.provider != nil {
		// Leftovers of an earlier failed build.
		b.provider.Release()
		b.provider = nil
	}

	s := p.Shader()
	b.layoutDesc = s.BindGroupLayoutDescriptor()
	for _, name := range []string{varFrame, varSampler, varVideo, varRegions, varElements} {
		if binding, ok := s.BindingFromVarName(name); ok {
			b.bindings[name] = binding
		}
	}

	layout, err := b.device.CreateBindGroupLayout(&b.layoutDesc)
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		layout.Release()
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	defer pipelineLayout.Release()

	module, err := b.device.CreateShaderModule(s.Module())
	if err != nil {
		layout.Release()
		return fmt.Errorf("%w: shader module %s: %v", common.ErrConfiguration, s.Key(), err)
	}
	defer module.Release()

	rp, err := b.device.CreateRenderPipeline(p.Descriptor(pipelineLayout, module, b.surfaceFormat))
	if err != nil {
		layout.Release()
		return fmt.Errorf("create render pipeline: %w", err)
	}
	b.renderPipeline = rp
	p.SetRenderPipeline(rp)

	b.provider = bind_group_provider.NewBindGroupProvider(p.PipelineKey(),
		bind_group_provider.WithBindGroupLayout(layout))

	vertexBuffer, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: p.PipelineKey() + " Vertices",
		Size:  uint64(vertexBytes),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create vertex buffer: %w", err)
	}
	b.provider.SetVertexBuffer(vertexBuffer)

	uniformBuffer, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: p.PipelineKey() + " Frame Uniforms",
		Size:  UniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}
	b.provider.SetBuffer(b.bindings[varFrame], uniformBuffer)
	b.queue.WriteBuffer(uniformBuffer, 0, common.SliceToBytes([]float32{1, 1, 1, 1}))

	if err := b.initSampler(common.SamplerStagingData{
		AddressModeU: wgpu.AddressModeRepeat,
		AddressModeV: wgpu.AddressModeRepeat,
	}); err != nil {
		return err
	}

	if binding, ok := b.bindings[varRegions]; ok {
		regionBuffer, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: p.PipelineKey() + " Regions",
			Size:  opts.RegionBytes,
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("%w: region buffer of %d bytes: %v", common.ErrResourceExhausted, opts.RegionBytes, err)
		}
		b.provider.SetBuffer(binding, regionBuffer)

		if err := b.initElementArray(opts.ElementSize, opts.ElementLayers); err != nil {
			return err
		}
	}
	return nil
}

const vertexBytes = quad.VertexCount * quad.FloatsPerVertex * 4

func (b *wgpuRendererBackendImpl) initSampler(staging common.SamplerStagingData) error {
	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         b.provider.Label() + " Sampler",
		AddressModeU:  common.Coalesce(staging.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(staging.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(staging.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     common.Coalesce(staging.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(staging.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(staging.MipmapFilter, wgpu.MipmapFilterModeNearest),
		LodMinClamp:   common.Coalesce(staging.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(staging.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(staging.MaxAnisotropy, 1),
	})
	if err != nil {
		return fmt.Errorf("create sampler: %w", err)
	}
	b.provider.SetSampler(b.bindings[varSampler], samp)
	return nil
}

func (b *wgpuRendererBackendImpl) initElementArray(size, layers uint32) error {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     b.provider.Label() + " Elements",
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              size,
			Height:             size,
			DepthOrArrayLayers: layers,
		},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return fmt.Errorf("%w: element array %dx%dx%d: %v", common.ErrResourceExhausted, size, size, layers, err)
	}
	view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           b.provider.Label() + " Elements View",
		Format:          wgpu.TextureFormatRGBA8Unorm,
		Dimension:       wgpu.TextureViewDimension2DArray,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: layers,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		tex.Release()
		return fmt.Errorf("create element view: %w", err)
	}
	b.elementsTex = tex
	b.elementSize = size
	b.elementLayers = layers
	b.provider.ReplaceTextureView(b.bindings[varElements], view)
	return nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.configureSurface(width, height)
}

// configureSurface must be called with mu held.
func (b *wgpuRendererBackendImpl) configureSurface(width, height int) error {
	if b.device == nil {
		return errNoDevice
	}
	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 {
		return fmt.Errorf("%w: surface reports no formats", common.ErrCapabilityUnsupported)
	}
	b.surfaceFormat = capabilities.Formats[0]
	b.alphaMode = wgpu.CompositeAlphaModeAuto
	for _, m := range capabilities.AlphaModes {
		if m == wgpu.CompositeAlphaModePremultiplied {
			b.alphaMode = m
			break
		}
	}
	if b.alphaMode != wgpu.CompositeAlphaModePremultiplied && len(capabilities.AlphaModes) > 0 {
		b.alphaMode = capabilities.AlphaModes[0]
	}

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   b.alphaMode,
	})
	return nil
}

func (b *wgpuRendererBackendImpl) WriteVertices(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.provider == nil || b.provider.VertexBuffer() == nil {
		return
	}
	b.queue.WriteBuffer(b.provider.VertexBuffer(), 0, data)
}

func (b *wgpuRendererBackendImpl) WriteUniform(offset uint64, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.provider == nil {
		return
	}
	b.writeBuffers([]bind_group_provider.BufferWrite{
		{Provider: b.provider, Binding: b.bindings[varFrame], Offset: offset, Data: data},
	})
}

func (b *wgpuRendererBackendImpl) WriteRegions(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	binding, ok := b.bindings[varRegions]
	if !ok || b.provider == nil || b.provider.Buffer(binding) == nil {
		return errors.New("no region buffer")
	}
	b.writeBuffers([]bind_group_provider.BufferWrite{
		{Provider: b.provider, Binding: binding, Data: data},
	})
	return nil
}

// writeBuffers must be called with mu held.
func (b *wgpuRendererBackendImpl) writeBuffers(writes []bind_group_provider.BufferWrite) {
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			continue
		}
		b.queue.WriteBuffer(buf, w.Offset, w.Data)
	}
}

func (b *wgpuRendererBackendImpl) WriteElementLayer(staging common.TextureStagingData) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.elementsTex == nil {
		return errors.New("no element texture")
	}
	if staging.Width != b.elementSize || staging.Height != b.elementSize || staging.Layer >= b.elementLayers {
		return fmt.Errorf("element layer %d of %dx%d does not fit %dx%dx%d",
			staging.Layer, staging.Width, staging.Height, b.elementSize, b.elementSize, b.elementLayers)
	}
	b.writeTexture(b.elementsTex, staging)
	return nil
}

func (b *wgpuRendererBackendImpl) ImportFrame(staging common.TextureStagingData) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.provider == nil {
		return errors.New("pipeline not built")
	}
	if b.frameTexture == nil || staging.Width != b.frameW || staging.Height != b.frameH {
		tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:     b.provider.Label() + " Frame",
			Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
			Dimension: wgpu.TextureDimension2D,
			Size: wgpu.Extent3D{
				Width:              staging.Width,
				Height:             staging.Height,
				DepthOrArrayLayers: 1,
			},
			Format:        wgpu.TextureFormatRGBA8Unorm,
			MipLevelCount: 1,
			SampleCount:   1,
		})
		if err != nil {
			return fmt.Errorf("%w: frame texture %dx%d: %v", common.ErrResourceExhausted, staging.Width, staging.Height, err)
		}
		if b.frameTexture != nil {
			b.frameTexture.Release()
		}
		b.frameTexture = tex
		b.frameW, b.frameH = staging.Width, staging.Height
	}

	b.writeTexture(b.frameTexture, staging)

	// A fresh view per frame keeps the binding tied to the frame that was just imported.
	view, err := b.frameTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("create frame view: %w", err)
	}
	b.provider.ReplaceTextureView(b.bindings[varVideo], view)
	return nil
}

// writeTexture must be called with mu held.
func (b *wgpuRendererBackendImpl) writeTexture(tex *wgpu.Texture, staging common.TextureStagingData) {
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{Z: staging.Layer},
			Aspect:   wgpu.TextureAspectAll,
		},
		staging.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  staging.Width * 4,
			RowsPerImage: staging.Height,
		},
		&wgpu.Extent3D{
			Width:              staging.Width,
			Height:             staging.Height,
			DepthOrArrayLayers: 1,
		},
	)
}

func (b *wgpuRendererBackendImpl) DrawQuad(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.provider == nil || b.renderPipeline == nil {
		return errors.New("pipeline not built")
	}
	if missing := b.provider.Missing(b.layoutDesc); len(missing) > 0 {
		return fmt.Errorf("unbound bindings %v", missing)
	}
	if b.provider.Stale() {
		bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   b.provider.Label(),
			Layout:  b.provider.BindGroupLayout(),
			Entries: b.provider.Entries(),
		})
		if err != nil {
			return fmt.Errorf("create bind group: %w", err)
		}
		b.provider.SetBindGroup(bg)
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	defer surfaceTexture.Release()

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return err
	}
	defer view.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: p.ClearColor(),
			},
		},
	})
	pass.SetPipeline(b.renderPipeline)
	pass.SetBindGroup(0, b.provider.BindGroup(), nil)
	pass.SetVertexBuffer(0, b.provider.VertexBuffer(), 0, wgpu.WholeSize)
	pass.Draw(6, 1, 0, 0)
	pass.End()
	pass.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer commandBuffer.Release()

	b.queue.Submit(commandBuffer)
	b.surface.Present()
	return nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.provider != nil {
		b.provider.Release()
		b.provider = nil
	}
	if b.frameTexture != nil {
		b.frameTexture.Release()
		b.frameTexture = nil
	}
	if b.elementsTex != nil {
		b.elementsTex.Release()
		b.elementsTex = nil
	}
	if b.renderPipeline != nil {
		b.renderPipeline.Release()
		b.renderPipeline = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
