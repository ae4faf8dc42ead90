package lumen

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// TextureID names a texture resource, conventionally its file path. Models
// that share a texture file share the GPU texture through the cache.
type TextureID string

// decodedTexture is the CPU-side result of a texture read. Decoding happens
// on the loader's scheduler; the GPU upload happens on the frame thread.
type decodedTexture struct {
	width  uint32
	height uint32
	texels []byte // tightly packed RGBA8
}

func decodeTexture(data []byte) (*decodedTexture, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode texture: %w", err)
	}
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	return &decodedTexture{
		width:  uint32(bounds.Dx()),
		height: uint32(bounds.Dy()),
		texels: rgba.Pix,
	}, nil
}

// TextureCache is the shared path-keyed texture registry. Uploads go through
// the Device; duplicate uploads of the same id are coalesced.
type TextureCache struct {
	dev      Device
	log      Logger
	textures map[TextureID]Texture
	sampler  Sampler
}

func NewTextureCache(dev Device, log Logger) *TextureCache {
	if log == nil {
		log = NewNopLogger()
	}
	return &TextureCache{
		dev:      dev,
		log:      log,
		textures: make(map[TextureID]Texture),
	}
}

// Upload installs a decoded texture under an id. Existing entries win: a
// texture already uploaded for this id is kept and the new data dropped,
// matching the shared-registry behavior for models that reference the same
// file.
func (c *TextureCache) Upload(id TextureID, decoded *decodedTexture) (Texture, error) {
	if tex, ok := c.textures[id]; ok {
		return tex, nil
	}
	tex, err := c.dev.CreateTexture(string(id), decoded.width, decoded.height, decoded.texels)
	if err != nil {
		return nil, fmt.Errorf("upload texture %q: %w", id, err)
	}
	c.textures[id] = tex
	c.log.Debugf("texture %q uploaded (%dx%d)", id, decoded.width, decoded.height)
	return tex, nil
}

// Lookup returns the GPU texture for an id, if uploaded.
func (c *TextureCache) Lookup(id TextureID) (Texture, bool) {
	tex, ok := c.textures[id]
	return tex, ok
}

// DefaultSampler returns the shared filtering sampler, creating it lazily.
func (c *TextureCache) DefaultSampler() (Sampler, error) {
	if c.sampler != nil {
		return c.sampler, nil
	}
	s, err := c.dev.CreateSampler("default sampler")
	if err != nil {
		return nil, err
	}
	c.sampler = s
	return s, nil
}
