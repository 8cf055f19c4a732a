package render

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Font sizes in pixels.
const (
	titleSize    = 28
	subtitleSize = 20
	panelSize    = 20
	clockSize    = 17
	labelSize    = 13
)

type faces struct {
	title    font.Face
	subtitle font.Face
	panel    font.Face
	clock    font.Face
	label    font.Face
}

// loadFaces parses the embedded Go fonts. The basicfont bitmap face stands in
// for any size that fails to load.
func loadFaces() (faces, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return faces{}, err
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return faces{}, err
	}
	face := func(f *opentype.Font, size float64) font.Face {
		ff, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			return basicfont.Face7x13
		}
		return ff
	}
	return faces{
		title:    face(bold, titleSize),
		subtitle: face(bold, subtitleSize),
		panel:    face(regular, panelSize),
		clock:    face(bold, clockSize),
		label:    face(regular, labelSize),
	}, nil
}

func fallbackFaces() faces {
	return faces{
		title:    basicfont.Face7x13,
		subtitle: basicfont.Face7x13,
		panel:    basicfont.Face7x13,
		clock:    basicfont.Face7x13,
		label:    basicfont.Face7x13,
	}
}

// drawText draws s with its baseline starting at (x, y).
func drawText(img *image.RGBA, face font.Face, x, y int, s string, c color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawShadowed draws a black copy of s shifted by offset and widened by
// spread pixels in every direction, then s itself on top.
func drawShadowed(img *image.RGBA, face font.Face, x, y int, s string, offset image.Point, spread int, c color.RGBA) {
	for dy := -spread; dy <= spread; dy++ {
		for dx := -spread; dx <= spread; dx++ {
			drawText(img, face, x+offset.X+dx, y+offset.Y+dy, s, black)
		}
	}
	drawText(img, face, x, y, s, c)
}

func textWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}
