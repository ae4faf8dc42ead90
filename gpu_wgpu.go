package lumen

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/cogentcore/webgpu/wgpu"
)

// WGPUDevice implements Device over a wgpu device/queue pair. All methods
// must be called from the thread that owns the wgpu device; the renderer
// guarantees that by funneling GPU object creation through PollCompletions.
type WGPUDevice struct {
	device       *wgpu.Device
	queue        *wgpu.Queue
	targetFormat wgpu.TextureFormat
	depthFormat  wgpu.TextureFormat
}

func NewWGPUDevice(device *wgpu.Device, queue *wgpu.Queue, targetFormat wgpu.TextureFormat) *WGPUDevice {
	return &WGPUDevice{
		device:       device,
		queue:        queue,
		targetFormat: targetFormat,
		depthFormat:  wgpu.TextureFormatDepth32Float,
	}
}

type wgpuShader struct {
	module *wgpu.ShaderModule
}

func (s *wgpuShader) Release() { s.module.Release() }

func (d *WGPUDevice) CompileShader(label, source string) (ShaderModule, error) {
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, fmt.Errorf("compile shader %q: %w", label, err)
	}
	return &wgpuShader{module: module}, nil
}

type wgpuPipeline struct {
	pipeline *wgpu.RenderPipeline
}

func (p *wgpuPipeline) Release() { p.pipeline.Release() }

func (d *WGPUDevice) CreatePipeline(label string, module ShaderModule, layout *LayoutDescriptor, vertexType any) (Pipeline, error) {
	shader, ok := module.(*wgpuShader)
	if !ok {
		return nil, fmt.Errorf("pipeline %q: module is not a wgpu shader", label)
	}

	pipeline, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: label,
		Vertex: wgpu.VertexState{
			Module:     shader.module,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{vertexBufferLayout(vertexType)},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader.module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    d.targetFormat,
					Blend:     nil,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            d.depthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
		},
		Multisample: wgpu.MultisampleState{
			Count:                  1,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: false,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", label, err)
	}
	return &wgpuPipeline{pipeline: pipeline}, nil
}

type wgpuBindGroup struct {
	bindGroup *wgpu.BindGroup
}

func (b *wgpuBindGroup) Release() { b.bindGroup.Release() }

func (d *WGPUDevice) CreateBindGroup(label string, pipeline Pipeline, layout *LayoutDescriptor, resources []BoundResource) (BindGroup, error) {
	wp, ok := pipeline.(*wgpuPipeline)
	if !ok {
		return nil, fmt.Errorf("bind group %q: pipeline is not a wgpu pipeline", label)
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(resources))
	for _, res := range resources {
		entry := wgpu.BindGroupEntry{
			Binding: res.Slot.Binding,
			Size:    wgpu.WholeSize,
		}
		switch {
		case res.Texture != nil:
			tex, ok := res.Texture.(*wgpuTexture)
			if !ok {
				return nil, fmt.Errorf("bind group %q: slot %q texture is not a wgpu texture", label, res.Slot.Name)
			}
			entry.TextureView = tex.view
		case res.Sampler != nil:
			sampler, ok := res.Sampler.(*wgpuSampler)
			if !ok {
				return nil, fmt.Errorf("bind group %q: slot %q sampler is not a wgpu sampler", label, res.Slot.Name)
			}
			entry.Sampler = sampler.sampler
		default:
			return nil, fmt.Errorf("bind group %q: slot %q has no resource", label, res.Slot.Name)
		}
		entries = append(entries, entry)
	}

	bindGroupLayout := wp.pipeline.GetBindGroupLayout(layout.MaterialGroup())
	defer bindGroupLayout.Release()

	bindGroup, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  bindGroupLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("bind group %q: %w", label, err)
	}
	return &wgpuBindGroup{bindGroup: bindGroup}, nil
}

type wgpuTexture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

func (t *wgpuTexture) Release() {
	t.view.Release()
	t.texture.Release()
}

func (d *WGPUDevice) CreateTexture(label string, width, height uint32, texels []byte) (Texture, error) {
	extent := wgpu.Extent3D{
		Width:              width,
		Height:             height,
		DepthOrArrayLayers: 1,
	}
	texture, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", label, err)
	}

	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, fmt.Errorf("texture view %q: %w", label, err)
	}

	err = d.queue.WriteTexture(
		texture.AsImageCopy(),
		texels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  width * 4,
			RowsPerImage: height,
		},
		&extent,
	)
	if err != nil {
		view.Release()
		texture.Release()
		return nil, fmt.Errorf("texture upload %q: %w", label, err)
	}
	return &wgpuTexture{texture: texture, view: view}, nil
}

type wgpuSampler struct {
	sampler *wgpu.Sampler
}

func (s *wgpuSampler) Release() { s.sampler.Release() }

func (d *WGPUDevice) CreateSampler(label string) (Sampler, error) {
	sampler, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		Compare:       wgpu.CompareFunctionUndefined,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("sampler %q: %w", label, err)
	}
	return &wgpuSampler{sampler: sampler}, nil
}

type wgpuMeshBuffers struct {
	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer
	indexCount   uint32
}

func (m *wgpuMeshBuffers) Release() {
	m.vertexBuffer.Release()
	m.indexBuffer.Release()
}

func (d *WGPUDevice) CreateMeshBuffers(label string, vertices []ModelVertex, indices []uint32) (MeshBuffers, error) {
	vertexBuf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label + " vertices",
		Contents: wgpu.ToBytes(vertices),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return nil, fmt.Errorf("vertex buffer %q: %w", label, err)
	}
	indexBuf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label + " indices",
		Contents: wgpu.ToBytes(indices),
		Usage:    wgpu.BufferUsageIndex,
	})
	if err != nil {
		vertexBuf.Release()
		return nil, fmt.Errorf("index buffer %q: %w", label, err)
	}
	return &wgpuMeshBuffers{
		vertexBuffer: vertexBuf,
		indexBuffer:  indexBuf,
		indexCount:   uint32(len(indices)),
	}, nil
}

// WGPUPass adapts a wgpu render pass encoder to the PassEncoder interface
// DrawBatch submits through.
type WGPUPass struct {
	Encoder *wgpu.RenderPassEncoder
}

func (p *WGPUPass) SetPipeline(pipeline Pipeline) {
	p.Encoder.SetPipeline(pipeline.(*wgpuPipeline).pipeline)
}

func (p *WGPUPass) SetBindGroup(group uint32, bg BindGroup) {
	p.Encoder.SetBindGroup(group, bg.(*wgpuBindGroup).bindGroup, nil)
}

func (p *WGPUPass) DrawMesh(m *Mesh) {
	buffers, ok := m.GPU.(*wgpuMeshBuffers)
	if !ok {
		return
	}
	p.Encoder.SetVertexBuffer(0, buffers.vertexBuffer, 0, wgpu.WholeSize)
	p.Encoder.SetIndexBuffer(buffers.indexBuffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	p.Encoder.DrawIndexed(buffers.indexCount, 1, 0, 0, 0)
}

// vertexBufferLayout derives a wgpu vertex layout from struct tags. Fields
// tagged `lumen:"layout"` become attributes; field order defines offsets.
func vertexBufferLayout(vertexType any) wgpu.VertexBufferLayout {
	t := reflect.TypeOf(vertexType)
	if t.Kind() != reflect.Struct {
		panic("vertex type must be a struct")
	}

	var attributes []wgpu.VertexAttribute
	var offset uint64

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Tag.Get("lumen") == "layout" {
			format := parseVertexFormat(field.Tag.Get("format"))
			location, err := strconv.Atoi(field.Tag.Get("location"))
			if err != nil {
				panic(err)
			}

			attributes = append(attributes, wgpu.VertexAttribute{
				ShaderLocation: uint32(location),
				Offset:         offset,
				Format:         format,
			})
		}

		offset += uint64(field.Type.Size())
	}

	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attributes,
	}
}

func parseVertexFormat(name string) wgpu.VertexFormat {
	switch name {
	case "float2":
		return wgpu.VertexFormatFloat32x2
	case "float3":
		return wgpu.VertexFormatFloat32x3
	case "float4":
		return wgpu.VertexFormatFloat32x4
	default:
		panic("unsupported vertex layout format: " + name)
	}
}
