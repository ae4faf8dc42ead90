package lumen

import (
	"testing"
)

const cubeFaceOBJ = `
# two quads, two materials
mtllib cube.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl stone
f 1/1/1 2/2/1 3/3/1 4/4/1
usemtl wood
f 4/4/1 3/3/1 2/2/1 1/1/1
`

func TestParseOBJSplitsPerMaterial(t *testing.T) {
	def, err := parseOBJ("cube", cubeFaceOBJ)
	if err != nil {
		t.Fatalf("parseOBJ: %v", err)
	}
	if len(def.Meshes) != 2 {
		t.Fatalf("expected one mesh per usemtl, got %d", len(def.Meshes))
	}
	if def.Meshes[0].MaterialName != "stone" || def.Meshes[1].MaterialName != "wood" {
		t.Fatalf("materials: %q, %q", def.Meshes[0].MaterialName, def.Meshes[1].MaterialName)
	}
	if def.mtlLibs[0] != "cube.mtl" {
		t.Fatalf("mtllib not recorded: %v", def.mtlLibs)
	}

	// A quad triangulates into two triangles with shared, deduplicated
	// vertices.
	m := def.Meshes[0]
	if len(m.Indices) != 6 {
		t.Fatalf("quad must triangulate to 6 indices, got %d", len(m.Indices))
	}
	if len(m.Vertices) != 4 {
		t.Fatalf("corners must deduplicate to 4 vertices, got %d", len(m.Vertices))
	}
}

func TestParseOBJFlipsV(t *testing.T) {
	def, err := parseOBJ("flip", "v 0 0 0\nv 1 0 0\nv 1 1 0\nvt 0 0.25\nf 1/1 2/1 3/1\n")
	if err != nil {
		t.Fatalf("parseOBJ: %v", err)
	}
	if got := def.Meshes[0].Vertices[0].TexCoords[1]; got != 0.75 {
		t.Fatalf("v coordinate must flip to top-left origin, got %v", got)
	}
}

func TestParseOBJNegativeIndices(t *testing.T) {
	def, err := parseOBJ("neg", "v 0 0 0\nv 1 0 0\nv 1 1 0\nf -3 -2 -1\n")
	if err != nil {
		t.Fatalf("parseOBJ: %v", err)
	}
	m := def.Meshes[0]
	if m.Vertices[0].Position != [3]float32{0, 0, 0} || m.Vertices[2].Position != [3]float32{1, 1, 0} {
		t.Fatalf("negative indices resolve relative to the end: %+v", m.Vertices)
	}
}

func TestParseOBJErrors(t *testing.T) {
	if _, err := parseOBJ("empty", "v 0 0 0\n"); err == nil {
		t.Fatalf("a model without faces must fail")
	}
	if _, err := parseOBJ("oob", "v 0 0 0\nf 1 2 3\n"); err == nil {
		t.Fatalf("out-of-range indices must fail")
	}
	if _, err := parseOBJ("short", "v 0 0\n"); err == nil {
		t.Fatalf("short position must fail")
	}
}

func TestParseMTL(t *testing.T) {
	mats := parseMTL(`
# comment
newmtl stone
Kd 0.5 0.5 0.5
map_Kd -bm 1.0 stone_diffuse.png

newmtl flat
Kd 1 1 1
`)
	if len(mats) != 2 {
		t.Fatalf("expected 2 materials, got %d", len(mats))
	}
	if mats[0].Name != "stone" || mats[0].DiffuseTexture != "stone_diffuse.png" {
		t.Fatalf("stone: %+v", mats[0])
	}
	if mats[1].Name != "flat" || mats[1].DiffuseTexture != "" {
		t.Fatalf("flat: %+v", mats[1])
	}
}

func TestModelNameFromPath(t *testing.T) {
	if got := modelNameFromPath("assets/models/teapot.obj"); got != "teapot" {
		t.Fatalf("got %q", got)
	}
	if got := modelNameFromPath("teapot.obj"); got != "teapot" {
		t.Fatalf("got %q", got)
	}
}
