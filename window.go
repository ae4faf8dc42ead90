package lumen

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Window owns the host window and the wgpu surface chain built over it. It is
// the composition root for a windowed renderer: NewWindow brings up glfw, the
// surface, adapter, device, and queue, and Device() hands out the renderer's
// GPU collaborator.
type Window struct {
	window        *glfw.Window
	surface       *wgpu.Surface
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surfaceConfig wgpu.SurfaceConfiguration
	depthTexture  *wgpu.Texture
	depthView     *wgpu.TextureView

	gpu *WGPUDevice
}

// NewWindow creates the window and GPU state. Must be called from the main
// goroutine; the calling goroutine is locked to its OS thread for the window's
// lifetime.
func NewWindow(width, height int, title string) (*Window, error) {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("init glfw: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(win))
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: title,
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	queue := device.GetQueue()

	caps := surface.GetCapabilities(adapter)
	surfaceConfig := wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, device, &surfaceConfig)

	w := &Window{
		window:        win,
		surface:       surface,
		adapter:       adapter,
		device:        device,
		queue:         queue,
		surfaceConfig: surfaceConfig,
	}
	if err := w.createDepthTarget(); err != nil {
		return nil, err
	}
	w.gpu = NewWGPUDevice(device, queue, surfaceConfig.Format)
	return w, nil
}

// Device returns the GPU collaborator for RendererConfig.
func (w *Window) Device() *WGPUDevice { return w.gpu }

func (w *Window) ShouldClose() bool { return w.window.ShouldClose() }

// Poll pumps window events; call once per frame.
func (w *Window) Poll() { glfw.PollEvents() }

// Resize reconfigures the surface and depth target. Zero dimensions (the
// window is minimized) are ignored.
func (w *Window) Resize(width, height int) error {
	if width == 0 || height == 0 {
		return nil
	}
	w.surfaceConfig.Width = uint32(width)
	w.surfaceConfig.Height = uint32(height)
	w.surface.Configure(w.adapter, w.device, &w.surfaceConfig)
	w.releaseDepthTarget()
	return w.createDepthTarget()
}

// Aspect is the surface's width/height ratio, for projection matrices.
func (w *Window) Aspect() float32 {
	return float32(w.surfaceConfig.Width) / float32(w.surfaceConfig.Height)
}

// BeginFrame acquires the next swapchain texture and opens a render pass
// cleared to the given color. The caller draws through the returned pass and
// then calls EndFrame.
func (w *Window) BeginFrame(clear [4]float32) (*FrameContext, error) {
	surfaceTexture, err := w.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("acquire surface texture: %w", err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("surface texture view: %w", err)
	}
	encoder, err := w.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		return nil, fmt.Errorf("command encoder: %w", err)
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    view,
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: wgpu.StoreOpStore,
				ClearValue: wgpu.Color{
					R: float64(clear[0]),
					G: float64(clear[1]),
					B: float64(clear[2]),
					A: float64(clear[3]),
				},
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            w.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	})

	return &FrameContext{
		window:  w,
		view:    view,
		encoder: encoder,
		pass:    pass,
		Pass:    &WGPUPass{Encoder: pass},
	}, nil
}

// FrameContext is one in-flight frame: an open render pass plus the state
// needed to submit and present it.
type FrameContext struct {
	window  *Window
	view    *wgpu.TextureView
	encoder *wgpu.CommandEncoder
	pass    *wgpu.RenderPassEncoder

	// Pass is what DrawBatch renders through.
	Pass *WGPUPass
}

// End closes the pass, submits the frame, and presents it.
func (f *FrameContext) End() error {
	defer f.encoder.Release()
	defer f.view.Release()

	if err := f.pass.End(); err != nil {
		return fmt.Errorf("end render pass: %w", err)
	}
	f.pass.Release()

	commands, err := f.encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish frame: %w", err)
	}
	defer commands.Release()

	f.window.queue.Submit(commands)
	f.window.surface.Present()
	return nil
}

func (w *Window) createDepthTarget() error {
	depth, err := w.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "depth",
		Size: wgpu.Extent3D{
			Width:              w.surfaceConfig.Width,
			Height:             w.surfaceConfig.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("depth texture: %w", err)
	}
	view, err := depth.CreateView(nil)
	if err != nil {
		depth.Release()
		return fmt.Errorf("depth view: %w", err)
	}
	w.depthTexture = depth
	w.depthView = view
	return nil
}

func (w *Window) releaseDepthTarget() {
	if w.depthView != nil {
		w.depthView.Release()
		w.depthView = nil
	}
	if w.depthTexture != nil {
		w.depthTexture.Release()
		w.depthTexture = nil
	}
}

// Close tears down GPU and window state.
func (w *Window) Close() {
	w.releaseDepthTarget()
	if w.device != nil {
		w.device.Release()
	}
	if w.adapter != nil {
		w.adapter.Release()
	}
	if w.surface != nil {
		w.surface.Release()
	}
	if w.window != nil {
		w.window.Destroy()
	}
	glfw.Terminate()
}
