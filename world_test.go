package lumen

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterialRefRoundTrip(t *testing.T) {
	canonical := NewCanonicalMaterial("teapot", "porcelain", BasicShaderID,
		map[string]TextureID{"t_diffuse": "porcelain.png"})
	instance := NewInstanceMaterial("porcelain#ab12cd34", "shaders/pbr.wgsl",
		map[string]TextureID{"t_diffuse": "gold.png"})

	for _, m := range []*Material{canonical, instance} {
		ref := SerializeMaterial(m)
		data, err := json.Marshal(ref)
		require.NoError(t, err)

		var back MaterialRef
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, ref, back)
	}

	// Canonical references reduce to their key.
	ref := SerializeMaterial(canonical)
	assert.Equal(t, "teapot/porcelain", ref.MaterialKey)
	assert.Nil(t, ref.ShaderOverride)
	assert.Empty(t, ref.Textures)

	// Instances stay self-contained.
	ref = SerializeMaterial(instance)
	require.NotNil(t, ref.ShaderOverride)
	assert.Equal(t, "shaders/pbr.wgsl", *ref.ShaderOverride)
	assert.Equal(t, map[string]TextureID{"t_diffuse": "gold.png"}, ref.Textures)
}

func TestMaterialRefOlderRecordWithoutOverride(t *testing.T) {
	var ref MaterialRef
	require.NoError(t, json.Unmarshal([]byte(`{"material_key":"teapot/default"}`), &ref))
	assert.Nil(t, ref.ShaderOverride, "absent override must stay nil, not empty")
}

func TestResolveCanonicalUsesModelTable(t *testing.T) {
	r, _, _, sched := testRenderer(t)
	loadTeapot(t, r, sched)

	mat := r.ResolveMaterial(MaterialRef{MaterialKey: "teapot/porcelain"})
	canonical, ok := r.Models.LookupMaterial("teapot/porcelain")
	require.True(t, ok)
	assert.Same(t, canonical, mat, "canonical references resolve to the table's material")
	assert.Equal(t, r.defaultShader, mat.Shader())
}

func TestResolveOverrideMakesInstance(t *testing.T) {
	r, _, _, sched := testRenderer(t)
	loadTeapot(t, r, sched)

	override := "shaders/pbr.wgsl"
	mat := r.ResolveMaterial(MaterialRef{
		MaterialKey:    "teapot/porcelain",
		ShaderOverride: &override,
	})
	assert.Equal(t, ProvenanceInstance, mat.Provenance())
	assert.Equal(t, ShaderID("shaders/pbr.wgsl"), mat.Shader(),
		"override wins regardless of the canonical shader")
}

func TestResolveMissingKeyFallsBack(t *testing.T) {
	r, _, _, _ := testRenderer(t)

	mat := r.ResolveMaterial(MaterialRef{MaterialKey: "ghost/missing"})
	assert.Same(t, r.DefaultMaterial(), mat, "missing keys substitute the default material")
}

func TestWorldSaveLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "world.json")

	override := "shaders/pbr.wgsl"
	world := DefaultWorld()
	world.Lights = []LightData{
		{
			Position: [3]float32{0, 4, 0},
			Color:    [4]float32{1, 1, 1, 1},
			Material: MaterialRef{MaterialKey: "bulb/emissive"},
		},
	}
	world.Emitters = []EmitterData{
		{
			Name: "sparks",
			Rate: 120,
			Material: MaterialRef{
				MaterialKey:    "sparks#1a2b3c4d",
				ShaderOverride: &override,
				Textures:       map[string]TextureID{"t_diffuse": "spark.png"},
			},
		},
	}

	require.NoError(t, SaveWorld(world, file))
	loaded, err := LoadWorld(file)
	require.NoError(t, err)
	assert.Equal(t, world, loaded)
}

func TestLoadWorldErrors(t *testing.T) {
	if _, err := LoadWorld(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("missing file must fail")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0644))
	if _, err := LoadWorld(bad); err == nil {
		t.Fatalf("malformed JSON must fail")
	}
}

func TestCameraMatrices(t *testing.T) {
	cam := DefaultCamera()

	fwd := cam.Forward()
	assert.InDelta(t, 1.0, fwd.Len(), 1e-5)
	assert.Less(t, fwd.Z(), float32(0), "yaw -90 looks down -Z")
	assert.Less(t, fwd.Y(), float32(0), "negative pitch looks down")

	view := cam.ViewMatrix()
	proj := cam.ProjectionMatrix(16.0 / 9.0)
	assert.NotEqual(t, view, proj)
	assert.NotZero(t, proj.At(0, 0))
}
