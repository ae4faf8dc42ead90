package lumen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditNeverMutatesSource(t *testing.T) {
	canonical := NewCanonicalMaterial("teapot", "porcelain", BasicShaderID,
		map[string]TextureID{"t_diffuse": "textures/porcelain.png"})

	edited := Edit(canonical, MaterialEdit{
		Shader:   "shaders/pbr.wgsl",
		Textures: map[string]TextureID{"t_diffuse": "textures/gold.png"},
	})

	assert.Equal(t, BasicShaderID, canonical.Shader())
	assert.Equal(t, map[string]TextureID{"t_diffuse": "textures/porcelain.png"}, canonical.Textures())
	assert.Equal(t, ProvenanceCanonical, canonical.Provenance())

	assert.Equal(t, ShaderID("shaders/pbr.wgsl"), edited.Shader())
	assert.Equal(t, map[string]TextureID{"t_diffuse": "textures/gold.png"}, edited.Textures())
	assert.Equal(t, ProvenanceInstance, edited.Provenance())
}

func TestEditClearsSlotWithEmptyID(t *testing.T) {
	src := NewInstanceMaterial("glow", "shaders/unlit.wgsl",
		map[string]TextureID{"t_diffuse": "a.png", "t_emissive": "b.png"})

	edited := Edit(src, MaterialEdit{Textures: map[string]TextureID{"t_emissive": ""}})
	_, ok := edited.Texture("t_emissive")
	assert.False(t, ok, "empty TextureID clears the slot")
	_, ok = edited.Texture("t_diffuse")
	assert.True(t, ok)
}

func TestInstanceNamesDoNotStack(t *testing.T) {
	src := NewCanonicalMaterial("teapot", "porcelain", BasicShaderID, nil)
	once := Edit(src, MaterialEdit{})
	twice := Edit(once, MaterialEdit{})

	require.True(t, strings.HasPrefix(once.Name, "porcelain#"))
	require.True(t, strings.HasPrefix(twice.Name, "porcelain#"))
	assert.Equal(t, 1, strings.Count(twice.Name, "#"), "re-editing must not stack suffixes")
	assert.NotEqual(t, once.Name, twice.Name)
}

func TestMaterialRevisionTracksEdits(t *testing.T) {
	m := NewInstanceMaterial("m", BasicShaderID, nil)
	rev := m.rev

	m.SetTexture("t_diffuse", "a.png")
	assert.Greater(t, m.rev, rev, "adding a texture bumps the revision")

	rev = m.rev
	m.SetTexture("t_diffuse", "a.png")
	assert.Equal(t, rev, m.rev, "no-op set must not bump")

	m.SetShader("shaders/pbr.wgsl")
	assert.Greater(t, m.rev, rev)

	rev = m.rev
	m.RemoveTexture("t_diffuse")
	assert.Greater(t, m.rev, rev)
}

func TestRefreshKeepsIdentity(t *testing.T) {
	m := NewCanonicalMaterial("teapot", "porcelain", BasicShaderID,
		map[string]TextureID{"t_diffuse": "old.png"})
	before := m

	m.refresh("shaders/pbr.wgsl", map[string]TextureID{"t_diffuse": "new.png"})
	assert.Same(t, before, m)
	assert.Equal(t, "porcelain", m.Name)
	assert.Equal(t, "teapot/porcelain", m.Key())
	id, _ := m.Texture("t_diffuse")
	assert.Equal(t, TextureID("new.png"), id)
}
