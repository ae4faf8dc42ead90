package lumen

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// CPU-side model definition parsed from OBJ/MTL text. This is what a model
// load job produces; GPU upload happens later on the frame thread.
type modelDef struct {
	Name      string
	Meshes    []meshDef
	Materials []materialDef
	mtlLibs   []string
}

type meshDef struct {
	Name         string
	Vertices     []ModelVertex
	Indices      []uint32
	MaterialName string // "" when the mesh declares no material
}

type materialDef struct {
	Name           string
	DiffuseTexture string
}

// modelNameFromPath turns "assets/teapot.obj" into "teapot".
func modelNameFromPath(path string) string {
	name := path
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".obj")
}

// parseOBJ parses Wavefront OBJ text into mesh definitions. Faces are
// triangulated fan-wise; meshes are split per usemtl so each mesh carries a
// single material. Referenced .mtl libraries are recorded for the loader to
// read and parse separately.
func parseOBJ(name, src string) (*modelDef, error) {
	def := &modelDef{Name: name}

	var positions [][3]float32
	var texCoords [][2]float32
	var normals [][3]float32

	var current *meshDef
	vertexCache := map[string]uint32{}

	startMesh := func(material string) {
		if current != nil && len(current.Indices) > 0 {
			def.Meshes = append(def.Meshes, *current)
		}
		current = &meshDef{Name: name, MaterialName: material}
		vertexCache = map[string]uint32{}
	}
	startMesh("")

	scanner := bufio.NewScanner(strings.NewReader(src))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			v, err := parseFloats3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("obj %s line %d: %w", name, lineNo, err)
			}
			positions = append(positions, v)
		case "vt":
			if len(fields) < 3 {
				return nil, fmt.Errorf("obj %s line %d: short vt", name, lineNo)
			}
			u, err1 := parseFloat(fields[1])
			v, err2 := parseFloat(fields[2])
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("obj %s line %d: bad vt", name, lineNo)
			}
			// OBJ uses a bottom-left UV origin; textures are top-left.
			texCoords = append(texCoords, [2]float32{u, 1 - v})
		case "vn":
			v, err := parseFloats3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("obj %s line %d: %w", name, lineNo, err)
			}
			normals = append(normals, v)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj %s line %d: face with fewer than 3 vertices", name, lineNo)
			}
			corners := fields[1:]
			idx := make([]uint32, len(corners))
			for i, corner := range corners {
				vi, err := resolveFaceVertex(corner, positions, texCoords, normals, current, vertexCache)
				if err != nil {
					return nil, fmt.Errorf("obj %s line %d: %w", name, lineNo, err)
				}
				idx[i] = vi
			}
			for i := 2; i < len(idx); i++ {
				current.Indices = append(current.Indices, idx[0], idx[i-1], idx[i])
			}
		case "usemtl":
			material := ""
			if len(fields) > 1 {
				material = fields[1]
			}
			if material != current.MaterialName {
				startMesh(material)
			}
		case "mtllib":
			def.mtlLibs = append(def.mtlLibs, fields[1:]...)
		}
		// o, g, s and anything else are ignored.
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("obj %s: %w", name, err)
	}
	if current != nil && len(current.Indices) > 0 {
		def.Meshes = append(def.Meshes, *current)
	}
	if len(def.Meshes) == 0 {
		return nil, fmt.Errorf("obj %s: no faces", name)
	}
	return def, nil
}

// resolveFaceVertex turns one "v/vt/vn" face corner into a deduplicated index
// in the current mesh. Missing vt/vn components yield zeroed attributes.
func resolveFaceVertex(corner string, positions [][3]float32, texCoords [][2]float32, normals [][3]float32, mesh *meshDef, cache map[string]uint32) (uint32, error) {
	if idx, ok := cache[corner]; ok {
		return idx, nil
	}

	parts := strings.Split(corner, "/")
	var vertex ModelVertex

	pi, err := objIndex(parts[0], len(positions))
	if err != nil {
		return 0, err
	}
	vertex.Position = positions[pi]

	if len(parts) > 1 && parts[1] != "" {
		ti, err := objIndex(parts[1], len(texCoords))
		if err != nil {
			return 0, err
		}
		vertex.TexCoords = texCoords[ti]
	}
	if len(parts) > 2 && parts[2] != "" {
		ni, err := objIndex(parts[2], len(normals))
		if err != nil {
			return 0, err
		}
		vertex.Normal = normals[ni]
	}

	idx := uint32(len(mesh.Vertices))
	mesh.Vertices = append(mesh.Vertices, vertex)
	cache[corner] = idx
	return idx, nil
}

// objIndex converts a 1-based (or negative, relative) OBJ index to 0-based.
func objIndex(field string, count int) (int, error) {
	i, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", field)
	}
	if i < 0 {
		i = count + i
	} else {
		i--
	}
	if i < 0 || i >= count {
		return 0, fmt.Errorf("index %q out of range", field)
	}
	return i, nil
}

// parseMTL parses a material library, keeping the attributes the material
// model consumes (currently the diffuse map).
func parseMTL(src string) []materialDef {
	var materials []materialDef
	var current *materialDef

	scanner := bufio.NewScanner(strings.NewReader(src))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "newmtl":
			if current != nil {
				materials = append(materials, *current)
			}
			name := ""
			if len(fields) > 1 {
				name = fields[1]
			}
			current = &materialDef{Name: name}
		case "map_Kd":
			if current != nil && len(fields) > 1 {
				// The texture path is the last field; options are skipped.
				current.DiffuseTexture = fields[len(fields)-1]
			}
		}
	}
	if current != nil {
		materials = append(materials, *current)
	}
	return materials
}

func parseFloat(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}

func parseFloats3(fields []string) ([3]float32, error) {
	var out [3]float32
	if len(fields) < 3 {
		return out, fmt.Errorf("expected 3 components, got %d", len(fields))
	}
	for i := 0; i < 3; i++ {
		f, err := parseFloat(fields[i])
		if err != nil {
			return out, fmt.Errorf("bad float %q", fields[i])
		}
		out[i] = f
	}
	return out, nil
}
