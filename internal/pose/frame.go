package pose

import "image"

// RGBFrame is a packed 3-byte-per-pixel frame, row-major, no padding.
type RGBFrame struct {
	Width  int
	Height int
	Pix    []byte
}

// ToRGB packs the frame's pixels as RGB, dropping alpha.
func ToRGB(img *image.RGBA) RGBFrame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := RGBFrame{Width: w, Height: h, Pix: make([]byte, w*h*3)}
	for y := 0; y < h; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		src := img.Pix[off : off+w*4]
		dst := out.Pix[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return out
}

// Mask holds per-pixel foreground probabilities quantized to 0..255.
type Mask struct {
	Width  int
	Height int
	Values []uint8
}

// Probability returns the foreground probability at (x, y) in [0, 1].
func (m *Mask) Probability(x, y int) float64 {
	if m == nil || x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	return float64(m.Values[y*m.Width+x]) / 255
}

// Valid reports whether the mask matches the given frame size.
func (m *Mask) Valid(width, height int) bool {
	return m != nil && m.Width == width && m.Height == height && len(m.Values) == width*height
}
