package lumen

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"
)

// MaterialRef is the persisted form of a material association. A canonical
// reference stores only its key and resolves against the owning model's
// material table on load. An instance reference is self-contained: it carries
// the shader and texture-slot mapping it was saved with.
//
// ShaderOverride is optional for compatibility with older records: absent
// means "use the model's canonical shader". Any non-nil override turns the
// reference into an instance on resolve, whatever the canonical table says.
type MaterialRef struct {
	MaterialKey    string               `json:"material_key"`
	ShaderOverride *string              `json:"shader_override,omitempty"`
	Textures       map[string]TextureID `json:"textures,omitempty"`
}

// SerializeMaterial produces the persisted reference for a material. Canonical
// materials reduce to their key; instances keep their full definition.
func SerializeMaterial(m *Material) MaterialRef {
	if m.Provenance() == ProvenanceCanonical {
		return MaterialRef{MaterialKey: m.Key()}
	}
	shader := string(m.Shader())
	return MaterialRef{
		MaterialKey:    m.Name,
		ShaderOverride: &shader,
		Textures:       m.Textures(),
	}
}

// ResolveMaterial turns a persisted reference back into a live material. A
// canonical key is looked up in the model table; a key that resolves to
// nothing substitutes the default material and logs the loss instead of
// failing the world load. References carrying a shader override resolve to an
// independent instance regardless of the canonical table.
func (r *Renderer) ResolveMaterial(ref MaterialRef) *Material {
	if ref.ShaderOverride != nil {
		return NewInstanceMaterial(ref.MaterialKey, ShaderID(*ref.ShaderOverride), ref.Textures)
	}
	if mat, ok := r.Models.LookupMaterial(ref.MaterialKey); ok {
		return mat
	}
	if ref.MaterialKey != DefaultMaterialName {
		r.log.Warnf("material %q not found, substituting default", ref.MaterialKey)
	}
	return r.defaultMaterial
}

// CameraData is the persisted camera pose and projection.
type CameraData struct {
	Position [3]float32 `json:"position"`
	YawDeg   float32    `json:"yaw_deg"`
	PitchDeg float32    `json:"pitch_deg"`
	FovyDeg  float32    `json:"fovy_deg"`
	ZNear    float32    `json:"znear"`
	ZFar     float32    `json:"zfar"`
}

func DefaultCamera() CameraData {
	return CameraData{
		Position: [3]float32{0, 5, 10},
		YawDeg:   -90,
		PitchDeg: -20,
		FovyDeg:  45,
		ZNear:    0.1,
		ZFar:     1000,
	}
}

// Forward is the unit direction the camera looks along.
func (c CameraData) Forward() mgl32.Vec3 {
	yaw := float64(mgl32.DegToRad(c.YawDeg))
	pitch := float64(mgl32.DegToRad(c.PitchDeg))
	return mgl32.Vec3{
		float32(math.Cos(yaw) * math.Cos(pitch)),
		float32(math.Sin(pitch)),
		float32(math.Sin(yaw) * math.Cos(pitch)),
	}.Normalize()
}

// ViewMatrix derives the camera's view transform from its yaw/pitch pose.
func (c CameraData) ViewMatrix() mgl32.Mat4 {
	eye := mgl32.Vec3{c.Position[0], c.Position[1], c.Position[2]}
	return mgl32.LookAtV(eye, eye.Add(c.Forward()), mgl32.Vec3{0, 1, 0})
}

// ProjectionMatrix derives the perspective projection for the given aspect.
func (c CameraData) ProjectionMatrix(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FovyDeg), aspect, c.ZNear, c.ZFar)
}

// LightData is one persisted light source: position and color, plus the
// material its marker mesh renders with.
type LightData struct {
	Position [3]float32  `json:"position"`
	Color    [4]float32  `json:"color"`
	Model    string      `json:"model,omitempty"`
	Material MaterialRef `json:"material"`
}

// EmitterData is one persisted particle emitter configuration.
type EmitterData struct {
	Name     string      `json:"name"`
	Model    string      `json:"model,omitempty"`
	Rate     float32     `json:"rate,omitempty"`
	Material MaterialRef `json:"material"`
}

// WorldData is the serializable world state: everything the scene needs to
// come back up in the same visual configuration.
type WorldData struct {
	BackgroundColor [4]float32    `json:"background_color"`
	Camera          CameraData    `json:"camera"`
	Lights          []LightData   `json:"lights,omitempty"`
	Emitters        []EmitterData `json:"emitters,omitempty"`
	Materials       []MaterialRef `json:"materials,omitempty"`
}

func DefaultWorld() WorldData {
	return WorldData{
		BackgroundColor: [4]float32{0.1, 0.2, 0.3, 1.0},
		Camera:          DefaultCamera(),
	}
}

// SaveWorld writes the world state as indented JSON.
func SaveWorld(w WorldData, filename string) error {
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal world: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("save world %q: %w", filename, err)
	}
	return nil
}

// LoadWorld reads world state back. Unknown fields in older or newer files
// are ignored; missing optional fields keep their zero values.
func LoadWorld(filename string) (WorldData, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return WorldData{}, fmt.Errorf("load world %q: %w", filename, err)
	}
	var w WorldData
	if err := json.Unmarshal(data, &w); err != nil {
		return WorldData{}, fmt.Errorf("parse world %q: %w", filename, err)
	}
	return w, nil
}
