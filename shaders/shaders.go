// Package shaders embeds the built-in WGSL sources shipped with the renderer.
package shaders

import (
	_ "embed"
)

// FallbackWGSL is the guaranteed-available error shader. It binds nothing in
// the material group and paints saturated magenta, so broken or still-loading
// materials are visible at a glance. It must always compile.
//
//go:embed fallback.wgsl
var FallbackWGSL string

//go:embed basic.wgsl
var BasicWGSL string
