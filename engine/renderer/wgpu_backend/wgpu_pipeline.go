package wgpu_backend

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

func (b *backend) CreatePipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return errDeviceLost()
	}

	var (
		native *nativePipeline
		err    error
	)
	switch p.Type() {
	case pipeline.PipelineTypeCompute:
		native, err = b.createComputePipeline(p)
	default:
		native, err = b.createRenderPipeline(p)
	}
	if err != nil {
		return err
	}
	native.generation = b.generation
	p.SetNative(native)
	return nil
}

func (b *backend) ReleasePipeline(p pipeline.Pipeline) {
	b.mu.Lock()
	defer b.mu.Unlock()

	native, ok := p.Native().(*nativePipeline)
	if !ok || native.generation != b.generation {
		return
	}
	b.evictLayoutsLocked(native.layouts)
	native.release()
}

func (b *backend) createShaderModule(s shader.Shader) (*wgpu.ShaderModule, error) {
	return b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: s.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.Source(),
		},
	})
}

// createLayouts builds one bind group layout per group used by the given shaders and the
// pipeline layout holding them.
func (b *backend) createLayouts(label string, stages map[wgpu.ShaderStage]shader.Shader) ([]*wgpu.BindGroupLayout, *wgpu.PipelineLayout, error) {
	merged := mergeBindGroupLayouts(stages)
	maxGroup := -1
	for g := range merged {
		maxGroup = max(maxGroup, g)
	}

	layouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g := 0; g <= maxGroup; g++ {
		desc := merged[g]
		desc.Label = fmt.Sprintf("%s group %d", label, g)
		layout, err := b.device.CreateBindGroupLayout(&desc)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		layouts[g] = layout
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, nil, err
	}
	return layouts, pipelineLayout, nil
}

func (b *backend) createRenderPipeline(p pipeline.Pipeline) (*nativePipeline, error) {
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	if vertexShader == nil {
		return nil, errors.New("vertex shader must be set to create a render pipeline")
	}
	fragmentShader := p.Shader(shader.ShaderTypeFragment)
	if fragmentShader == nil && len(p.ColorTargets()) > 0 {
		return nil, errors.New("fragment shader must be set for a render pipeline with color targets")
	}

	vs, err := b.createShaderModule(vertexShader)
	if err != nil {
		return nil, err
	}
	defer vs.Release()

	stages := map[wgpu.ShaderStage]shader.Shader{wgpu.ShaderStageVertex: vertexShader}
	var fragment *wgpu.FragmentState
	if fragmentShader != nil {
		fs, err := b.createShaderModule(fragmentShader)
		if err != nil {
			return nil, err
		}
		defer fs.Release()
		stages[wgpu.ShaderStageFragment] = fragmentShader
		fragment = &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    colorTargets(p.ColorTargets()),
		}
	}

	layouts, pipelineLayout, err := b.createLayouts(p.PipelineKey(), stages)
	if err != nil {
		return nil, err
	}
	defer pipelineLayout.Release()

	var depthStencil *wgpu.DepthStencilState
	if p.DepthFormat() != resource.FormatUndefined {
		depthCompare := compareFunctions[p.DepthCompare()]
		if !p.DepthTestEnabled() {
			depthCompare = wgpu.CompareFunctionAlways
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:              textureFormats[p.DepthFormat()],
			DepthWriteEnabled:   p.DepthWriteEnabled(),
			DepthCompare:        depthCompare,
			DepthBias:           p.DepthBias(),
			DepthBiasSlopeScale: p.DepthBiasSlopeScale(),
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
			Buffers:    vertexBufferLayout(vertexShader.VertexLayout()),
		},
		Fragment: fragment,
		Primitive: wgpu.PrimitiveState{
			Topology:  topologies[p.Topology()],
			FrontFace: frontFaces[p.FrontFace()],
			CullMode:  cullModes[p.CullMode()],
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return nil, err
	}
	return &nativePipeline{render: created, layouts: layouts}, nil
}

func (b *backend) createComputePipeline(p pipeline.Pipeline) (*nativePipeline, error) {
	if !b.caps.ComputeShaders {
		return nil, fmt.Errorf("compute pipeline %q: compute shaders are not supported", p.PipelineKey())
	}
	computeShader := p.Shader(shader.ShaderTypeCompute)
	if computeShader == nil {
		return nil, errors.New("compute shader must be set to create a compute pipeline")
	}

	s, err := b.createShaderModule(computeShader)
	if err != nil {
		return nil, err
	}
	defer s.Release()

	layouts, pipelineLayout, err := b.createLayouts(p.PipelineKey(), map[wgpu.ShaderStage]shader.Shader{
		wgpu.ShaderStageCompute: computeShader,
	})
	if err != nil {
		return nil, err
	}
	defer pipelineLayout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return nil, err
	}
	return &nativePipeline{compute: created, layouts: layouts}, nil
}

// mergeBindGroupLayouts merges the reflected bindings of every stage of a pipeline into one
// layout descriptor per group.
//
// For each group index present in any stage:
//   - Entries with the same binding number have their Visibility flags ORed together
//   - Entries unique to one stage are included with that stage's visibility
//
// Parameters:
//   - stages: the shader of each stage keyed by its visibility flag
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func mergeBindGroupLayouts(stages map[wgpu.ShaderStage]shader.Shader) map[int]wgpu.BindGroupLayoutDescriptor {
	groups := make(map[int]map[uint32]wgpu.BindGroupLayoutEntry)
	for visibility, s := range stages {
		for _, binding := range s.Bindings() {
			// vertex stages may not see writable storage
			if visibility == wgpu.ShaderStageVertex &&
				(binding.Kind == shader.BindingKindStorageReadWrite || binding.Kind == shader.BindingKindStorageTexture) {
				continue
			}
			entries, ok := groups[binding.Group]
			if !ok {
				entries = make(map[uint32]wgpu.BindGroupLayoutEntry)
				groups[binding.Group] = entries
			}
			if existing, ok := entries[uint32(binding.Binding)]; ok {
				existing.Visibility |= visibility
				entries[uint32(binding.Binding)] = existing
				continue
			}
			entries[uint32(binding.Binding)] = layoutEntry(binding, visibility)
		}
	}

	merged := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entryMap := range groups {
		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
		for _, e := range entryMap {
			entries = append(entries, e)
		}
		// sort by binding for deterministic layout
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		merged[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return merged
}
