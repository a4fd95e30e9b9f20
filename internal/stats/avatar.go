package stats

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
)

// AvatarSize is the side length, in pixels and chat cells, of a rendered face.
const AvatarSize = 8

type paletteEntry struct {
	code    string
	r, g, b int
}

// chatPalette is the sixteen legacy chat colours.
var chatPalette = []paletteEntry{
	{"§0", 0, 0, 0}, {"§1", 0, 0, 170},
	{"§2", 0, 170, 0}, {"§3", 0, 170, 170},
	{"§4", 170, 0, 0}, {"§5", 170, 0, 170},
	{"§6", 255, 170, 0}, {"§7", 170, 170, 170},
	{"§8", 85, 85, 85}, {"§9", 85, 85, 255},
	{"§a", 85, 255, 85}, {"§b", 85, 255, 255},
	{"§c", 255, 85, 85}, {"§d", 255, 85, 255},
	{"§e", 255, 255, 85}, {"§f", 255, 255, 255},
}

// ClosestColor returns the legacy colour code nearest to an RGB triple.
func ClosestColor(r, g, b uint8) string {
	best, bestDist := chatPalette[0].code, -1
	for _, c := range chatPalette {
		dr, dg, db := int(r)-c.r, int(g)-c.g, int(b)-c.b
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = c.code, d
		}
	}
	return best
}

// AvatarLines renders an image as eight lines of coloured block characters.
// Pixels with alpha at or below 128 become spaces.
func AvatarLines(img image.Image) []string {
	dst := image.NewNRGBA(image.Rect(0, 0, AvatarSize, AvatarSize))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	lines := make([]string, 0, AvatarSize)
	for y := 0; y < AvatarSize; y++ {
		var sb strings.Builder
		for x := 0; x < AvatarSize; x++ {
			c := color.NRGBAModel.Convert(dst.At(x, y)).(color.NRGBA)
			if c.A > 128 {
				sb.WriteString(ClosestColor(c.R, c.G, c.B))
				sb.WriteString("█")
			} else {
				sb.WriteByte(' ')
			}
		}
		lines = append(lines, sb.String())
	}
	return lines
}
