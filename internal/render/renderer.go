package render

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"cspanlens/internal/logging"
	"cspanlens/internal/pose"
	"cspanlens/internal/textutil"
)

// Default overlay captions.
const (
	DefaultTitle    = "CSPAN Video Analysis"
	DefaultSubtitle = "Multi-Person Pose Tracking + Speech Analysis"
)

// Layout constants in pixels.
const (
	PanelHeight      = 180
	PanelAlpha       = 0.8
	PanelMarginX     = 20
	PanelFirstLineDY = 150
	PanelLineSpacing = 30
	PanelWrapWidth   = 80

	TitleBarHeight = 60
	TitleBarAlpha  = 0.7
	TitleBaseline  = 40
	TitleMarginX   = 20
	ClockOffsetX   = 200
	ClockBaseline  = 80

	MaskThreshold      = 0.1
	SkeletonWidth      = 3
	SkeletonVisibility = 0.5
	KeypointVisibility = 0.7
	KeypointRadius     = 5
	LabelOffsetX       = 10

	BaseVisibility      = 0.5
	BaseConnectionWidth = 2
	BaseDotRadius       = 2
)

var (
	black      = color.RGBA{0, 0, 0, 255}
	white      = color.RGBA{255, 255, 255, 255}
	yellow     = color.RGBA{255, 255, 0, 255}
	clockGrey  = color.RGBA{200, 200, 200, 255}
	background = color.RGBA{192, 192, 192, 255}

	baseGrey  = color.RGBA{224, 224, 224, 255}
	baseLeft  = color.RGBA{255, 138, 0, 255}
	baseRight = color.RGBA{0, 217, 231, 255}
)

// RegionColors maps skeleton regions to stroke colours.
var RegionColors = map[pose.Region]color.RGBA{
	pose.RegionArms:  {0, 128, 255, 255},
	pose.RegionLegs:  {0, 255, 0, 255},
	pose.RegionFace:  {255, 0, 255, 255},
	pose.RegionTorso: {255, 0, 0, 255},
	pose.RegionOther: yellow,
}

// Options customizes the overlay captions.
type Options struct {
	Title    string
	Subtitle string
}

// Renderer draws overlays. It is not safe for concurrent use.
type Renderer struct {
	title    string
	subtitle string
	faces    faces
}

// New loads the overlay fonts. When the vector fonts cannot be parsed the
// renderer still works with a bitmap font and logs a warning.
func New(opts Options, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Renderer{title: opts.Title, subtitle: opts.Subtitle}
	if r.title == "" {
		r.title = DefaultTitle
	}
	if r.subtitle == "" {
		r.subtitle = DefaultSubtitle
	}
	f, err := loadFaces()
	if err != nil {
		logging.WarnWithContext(logging.NewComponentLogger(logger, "render"), "overlay fonts unavailable",
			"render_font_fallback",
			logging.Error(err),
			logging.String(logging.FieldImpact, "overlay text uses a small bitmap font"),
		)
		f = fallbackFaces()
	}
	r.faces = f
	return r
}

// Render draws the overlay for one processed frame in place.
func (r *Renderer) Render(frame *image.RGBA, result pose.Result, text string, timestamp float64) {
	if result.Mask != nil {
		isolate(frame, result.Mask)
	}
	if len(result.Landmarks) > 0 {
		drawBaseLayer(frame, result.Landmarks)
		r.drawSkeleton(frame, result.Landmarks)
		r.drawKeypoints(frame, result.Landmarks)
	}
	r.drawPanel(frame, text)
	r.drawTitleBar(frame, timestamp)
}

// isolate replaces pixels whose foreground probability is at or below the
// threshold with a flat background.
func isolate(frame *image.RGBA, mask *pose.Mask) {
	b := frame.Bounds()
	if !mask.Valid(b.Dx(), b.Dy()) {
		return
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if mask.Probability(x, y) > MaskThreshold {
				continue
			}
			frame.SetRGBA(b.Min.X+x, b.Min.Y+y, background)
		}
	}
}

// toPixel maps normalized coordinates onto the frame, truncating.
func toPixel(frame *image.RGBA, lm pose.Landmark) image.Point {
	b := frame.Bounds()
	return image.Pt(b.Min.X+int(lm.X*float64(b.Dx())), b.Min.Y+int(lm.Y*float64(b.Dy())))
}

// drawBaseLayer draws the plain landmark style underneath the enhanced
// skeleton: thin grey edges and small side-coloured dots with a white rim.
func drawBaseLayer(frame *image.RGBA, lms []pose.Landmark) {
	for _, c := range pose.Connections {
		if c.From >= len(lms) || c.To >= len(lms) {
			continue
		}
		a, b := lms[c.From], lms[c.To]
		if a.Visibility < BaseVisibility || b.Visibility < BaseVisibility {
			continue
		}
		thickLine(frame, toPixel(frame, a), toPixel(frame, b), BaseConnectionWidth, baseGrey)
	}
	for i, lm := range lms {
		if lm.Visibility < BaseVisibility {
			continue
		}
		p := toPixel(frame, lm)
		fillCircle(frame, p, BaseDotRadius+1, white)
		fillCircle(frame, p, BaseDotRadius, baseDotColour(i))
	}
}

// baseDotColour colours a landmark by body side. Indices 1-3 are the left
// eye, 4-6 the right eye, and from 7 on odd indices are on the left.
func baseDotColour(i int) color.RGBA {
	switch {
	case i == pose.Nose:
		return baseGrey
	case i <= 3 || (i > 6 && i%2 == 1):
		return baseLeft
	default:
		return baseRight
	}
}

func (r *Renderer) drawSkeleton(frame *image.RGBA, lms []pose.Landmark) {
	for _, c := range pose.Connections {
		if c.From >= len(lms) || c.To >= len(lms) {
			continue
		}
		a, b := lms[c.From], lms[c.To]
		if a.Visibility <= SkeletonVisibility || b.Visibility <= SkeletonVisibility {
			continue
		}
		thickLine(frame, toPixel(frame, a), toPixel(frame, b), SkeletonWidth, RegionColors[pose.RegionOf(c)])
	}
}

func (r *Renderer) drawKeypoints(frame *image.RGBA, lms []pose.Landmark) {
	for _, kp := range pose.Keypoints {
		if kp.Index >= len(lms) || lms[kp.Index].Visibility <= KeypointVisibility {
			continue
		}
		p := toPixel(frame, lms[kp.Index])
		fillCircle(frame, p, KeypointRadius, white)
		strokeCircle(frame, p, KeypointRadius, black)
		if kp.Labeled {
			drawShadowed(frame, r.faces.label, p.X+LabelOffsetX, p.Y, kp.Name, image.Point{}, 1, white)
		}
	}
}

// PanelLines returns the lines the speech panel shows for text.
func PanelLines(text string) []string {
	return textutil.WrapWords(text, PanelWrapWidth)
}

func (r *Renderer) drawPanel(frame *image.RGBA, text string) {
	b := frame.Bounds()
	darkenRect(frame, image.Rect(b.Min.X, b.Max.Y-PanelHeight, b.Max.X, b.Max.Y), PanelAlpha)
	for i, line := range PanelLines(text) {
		y := b.Max.Y - PanelFirstLineDY + i*PanelLineSpacing
		drawShadowed(frame, r.faces.panel, b.Min.X+PanelMarginX, y, line, image.Pt(2, 2), 0, white)
	}
}

func (r *Renderer) drawTitleBar(frame *image.RGBA, timestamp float64) {
	b := frame.Bounds()
	darkenRect(frame, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+TitleBarHeight), TitleBarAlpha)

	drawShadowed(frame, r.faces.title, b.Min.X+TitleMarginX, b.Min.Y+TitleBaseline, r.title, image.Point{}, 1, yellow)

	subX := b.Max.X - textWidth(r.faces.subtitle, r.subtitle) - TitleMarginX
	drawShadowed(frame, r.faces.subtitle, subX, b.Min.Y+TitleBaseline, r.subtitle, image.Point{}, 1, yellow)

	drawText(frame, r.faces.clock, b.Max.X-ClockOffsetX, b.Min.Y+ClockBaseline, "Time: "+FormatTimestamp(timestamp), clockGrey)
}

// FormatTimestamp renders seconds as zero-padded MM:SS. Minutes are not
// wrapped into hours.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
