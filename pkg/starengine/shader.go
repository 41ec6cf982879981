package starengine

import (
	"fmt"

	"github.com/Arneaj/StarsFrontend/pkg/starmap"
)

// The fragment stage: every pixel accumulates an additive glow from
// every star, with intensity decaying over 24h since the star's last
// like, then gets divided down by distance from the cursor. Star
// positions arrive in world pixels and are normalized by half the map
// extent, which keeps the falloff constants from the original tuning.
//
// Timestamps are seconds relative to starmap.EpochBase: raw unix
// seconds do not survive the float32 uniform conversion.
const shaderTemplate = `//kage:unit pixels

package main

var NumStars int
var StarPos [%d]vec2
var StarLike [%d]float
var StarAuthor [%d]float
var Cursor vec2
var Time float
var Now float
var Zoom float
var Origin vec2
var Center vec2

const mapHalf = %f
const likeDecay = 86400.0

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	world := dstPos.xy*Zoom + Origin + Center*(1.0-Zoom)
	uv := world / mapHalf
	uvCursor := Cursor / mapHalf

	out := vec4(0.0, 0.0, 0.0, 1.0)
	for i := 0; i < %d; i++ {
		if i < NumStars {
			d := distance(uv, StarPos[i]/mapHalf)
			age := max(Now-StarLike[i], 0.0)
			fade := clamp(1.0-age/likeDecay, 0.0, 1.0)
			warm := 0.05 * fract(StarAuthor[i]*0.618)
			tint := vec4(1.0, 0.9-warm, 0.7+warm, 1.0)
			out += (1.0+0.1*sin(10.0*Time)) * fade * tint / pow(500.0*d, 1.8)
		}
	}

	dc := max(0.1, distance(uvCursor, uv))
	vign := max(0.3, 5.0*dc)
	return vec4(out.rgb/vign, 1.0)
}
`

func shaderSource() []byte {
	return []byte(fmt.Sprintf(shaderTemplate,
		starmap.MaxStars, starmap.MaxStars, starmap.MaxStars,
		starmap.MapExtent/2,
		starmap.MaxStars,
	))
}
