package render

import (
	"image"
	"image/color"
	"math"
)

// darkenRect blends r towards black. It matches drawing a black rectangle on
// a copy of the frame and mixing it back at the given opacity.
func darkenRect(img *image.RGBA, r image.Rectangle, alpha float64) {
	r = r.Intersect(img.Bounds())
	keep := 1 - alpha
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := img.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Pix[i] = scale(img.Pix[i], keep)
			img.Pix[i+1] = scale(img.Pix[i+1], keep)
			img.Pix[i+2] = scale(img.Pix[i+2], keep)
			i += 4
		}
	}
}

func scale(v uint8, f float64) uint8 {
	return uint8(math.Min(255, math.Round(float64(v)*f)))
}

// thickLine draws a segment with the given stroke width and round caps by
// colouring every pixel within width/2 of the segment.
func thickLine(img *image.RGBA, p0, p1 image.Point, width float64, c color.RGBA) {
	half := width / 2
	pad := int(math.Ceil(half))
	box := image.Rect(
		min(p0.X, p1.X)-pad, min(p0.Y, p1.Y)-pad,
		max(p0.X, p1.X)+pad+1, max(p0.Y, p1.Y)+pad+1,
	).Intersect(img.Bounds())

	ax, ay := float64(p0.X), float64(p0.Y)
	dx, dy := float64(p1.X-p0.X), float64(p1.Y-p0.Y)
	lenSq := dx*dx + dy*dy
	limit := half * half
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			px, py := float64(x)-ax, float64(y)-ay
			t := 0.0
			if lenSq > 0 {
				t = math.Max(0, math.Min(1, (px*dx+py*dy)/lenSq))
			}
			ex, ey := px-t*dx, py-t*dy
			if ex*ex+ey*ey <= limit {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

// fillCircle paints a solid disc.
func fillCircle(img *image.RGBA, center image.Point, radius int, c color.RGBA) {
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				setIn(img, center.X+dx, center.Y+dy, c)
			}
		}
	}
}

// strokeCircle paints a one pixel ring.
func strokeCircle(img *image.RGBA, center image.Point, radius int, c color.RGBA) {
	inner := (float64(radius) - 0.5) * (float64(radius) - 0.5)
	outer := (float64(radius) + 0.5) * (float64(radius) + 0.5)
	for dy := -radius - 1; dy <= radius+1; dy++ {
		for dx := -radius - 1; dx <= radius+1; dx++ {
			d := float64(dx*dx + dy*dy)
			if d > inner && d <= outer {
				setIn(img, center.X+dx, center.Y+dy, c)
			}
		}
	}
}

func setIn(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}
