package avatar

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Size is the square avatar edge in pixels.
const Size = 48

// PNG renders a deterministic initials-on-colour avatar for name using
// the given background hex colour (e.g. "#2563eb").
func PNG(name, hexColor string) ([]byte, error) {
	bg, err := parseHex(hexColor)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			img.Set(x, y, bg)
		}
	}

	text := initials(name)
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot: fixed.P(
			(Size-width)/2,
			(Size+face.Metrics().Ascent.Ceil())/2-1,
		),
	}
	d.DrawString(text)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// initials picks up to two leading letters from the name's words,
// uppercased. A name with no letters falls back to "?".
func initials(name string) string {
	var out []rune
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				out = append(out, unicode.ToUpper(r))
				break
			}
		}
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

func parseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("avatar: bad colour %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("avatar: bad colour %q", s)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
