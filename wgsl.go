package lumen

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	wgslCommentRegex   = regexp.MustCompile(`//[^\n]*`)
	wgslBindingRegex   = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
	wgslVertexEntry    = regexp.MustCompile(`@vertex\s+fn\s+(\w+)`)
	wgslFragmentEntry  = regexp.MustCompile(`@fragment\s+fn\s+(\w+)`)
)

// parseBindingSlots extracts every @group/@binding declaration from WGSL
// source. This is the derivation rule for a shader's LayoutDescriptor: the
// slot set is exactly what the source declares, sorted by (group, binding).
func parseBindingSlots(source string) []BindingSlot {
	cleaned := wgslCommentRegex.ReplaceAllString(source, "")

	var slots []BindingSlot
	for _, match := range wgslBindingRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		addressSpace := strings.TrimSpace(match[3])
		varName := strings.TrimSpace(match[4])
		typeName := strings.TrimSpace(match[5])

		slots = append(slots, BindingSlot{
			Group:      uint32(group),
			Binding:    uint32(binding),
			Name:       varName,
			Kind:       classifyBinding(addressSpace, typeName),
			Visibility: bindingVisibility(addressSpace, typeName),
		})
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Group != slots[j].Group {
			return slots[i].Group < slots[j].Group
		}
		return slots[i].Binding < slots[j].Binding
	})
	return slots
}

func classifyBinding(addressSpace, typeName string) BindingKind {
	if addressSpace != "" {
		if strings.HasPrefix(addressSpace, "storage") {
			return BindingStorageBuffer
		}
		return BindingUniformBuffer
	}
	switch {
	case typeName == "sampler", typeName == "sampler_comparison":
		return BindingSampler
	case strings.HasPrefix(typeName, "texture_"):
		return BindingTexture
	}
	// var declarations without an address space that are not textures or
	// samplers do not appear in bind groups (private/workgroup vars are
	// filtered by the regex requiring @group/@binding).
	return BindingUniformBuffer
}

// bindingVisibility follows the convention of the built-in shaders: sampled
// textures and samplers are fragment-only, buffers are visible to both stages.
func bindingVisibility(addressSpace, typeName string) ShaderStage {
	if addressSpace == "" && (typeName == "sampler" || typeName == "sampler_comparison" || strings.HasPrefix(typeName, "texture_")) {
		return StageFragment
	}
	return StageVertex | StageFragment
}

// parseEntryPoints returns the vertex and fragment entry point names declared
// in the source, or "" for a missing stage.
func parseEntryPoints(source string) (vertex, fragment string) {
	cleaned := wgslCommentRegex.ReplaceAllString(source, "")
	if m := wgslVertexEntry.FindStringSubmatch(cleaned); m != nil {
		vertex = m[1]
	}
	if m := wgslFragmentEntry.FindStringSubmatch(cleaned); m != nil {
		fragment = m[1]
	}
	return vertex, fragment
}
