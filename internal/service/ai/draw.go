package ai

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"sync"

	"github.com/anthonynsimon/bild/clone"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"objectsguesser/internal/model"
)

const (
	// DefaultBoxColor is the outline and label background colour.
	DefaultBoxColor = "#007AFF"
	boxLineWidth    = 4
	labelPadX       = 4
	labelPadY       = 2
)

// DefaultFace is the built-in bitmap face used when no font file is configured.
func DefaultFace() font.Face {
	return basicfont.Face7x13
}

// LoadFace loads a TrueType/OpenType font at the given size. An empty path
// selects DefaultFace. When the file cannot be used the default face is
// returned together with the error so callers can log it and carry on.
func LoadFace(path string, size float64) (font.Face, error) {
	if path == "" {
		return DefaultFace(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultFace(), fmt.Errorf("failed to read font %s: %w", path, err)
	}

	parsed, err := opentype.Parse(data)
	if err != nil {
		return DefaultFace(), fmt.Errorf("failed to parse font %s: %w", path, err)
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return DefaultFace(), fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}

// Annotator draws detection boxes and labels onto copies of images.
type Annotator struct {
	face      font.Face
	boxColor  color.RGBA
	textColor color.RGBA
	// font.Face implementations are not safe for concurrent use
	mu sync.Mutex
}

// NewAnnotator parses the hex box colour and picks white or black text,
// whichever contrasts better with it.
func NewAnnotator(face font.Face, boxHex string) (*Annotator, error) {
	c, err := colorful.Hex(boxHex)
	if err != nil {
		return nil, fmt.Errorf("invalid box color %q: %w", boxHex, err)
	}
	if face == nil {
		face = DefaultFace()
	}

	r, g, b := c.RGB255()
	return &Annotator{
		face:      face,
		boxColor:  color.RGBA{R: r, G: g, B: b, A: 255},
		textColor: contrastingColor(c),
	}, nil
}

// contrastingColor returns black for light backgrounds and white for dark ones.
func contrastingColor(c colorful.Color) color.RGBA {
	l, _, _ := c.Lab()
	if l > 0.6 {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: 255, G: 255, B: 255, A: 255}
}

// Annotate returns a copy of img with every detection drawn on it. img itself is
// never modified.
func (a *Annotator) Annotate(img image.Image, detections []model.Detection) *image.RGBA {
	canvas := clone.AsRGBA(img)

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, d := range detections {
		x1 := int(math.Round(d.Box.X1))
		y1 := int(math.Round(d.Box.Y1))
		x2 := int(math.Round(d.Box.X2))
		y2 := int(math.Round(d.Box.Y2))

		strokeRect(canvas, image.Rect(x1, y1, x2+1, y2+1), a.boxColor, boxLineWidth)
		a.drawLabel(canvas, x1, y1, LabelText(d))
	}

	return canvas
}

// LabelText formats the caption drawn above a box, e.g. "cat 0.98".
func LabelText(d model.Detection) string {
	return fmt.Sprintf("%s %.2f", d.Label, d.Score)
}

// drawLabel fills a background sized to the measured text directly above the
// box's top edge (never above the image top) and writes the text on it.
func (a *Annotator) drawLabel(dst *image.RGBA, x1, y1 int, text string) {
	bounds, tw, th := a.measureText(text)

	yText := max(0, y1-th-2*labelPadY)
	background := image.Rect(x1, yText, x1+tw+2*labelPadX+1, yText+th+2*labelPadY+1)
	draw.Draw(dst, background, image.NewUniform(a.boxColor), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(a.textColor),
		Face: a.face,
		Dot: fixed.Point26_6{
			X: fixed.I(x1+labelPadX) - bounds.Min.X,
			Y: fixed.I(yText+labelPadY) - bounds.Min.Y,
		},
	}
	drawer.DrawString(text)
}

// measureText returns the ink bounds of text and their width and height in
// pixels. Callers hold a.mu.
func (a *Annotator) measureText(text string) (fixed.Rectangle26_6, int, int) {
	bounds, _ := font.BoundString(a.face, text)
	return bounds, (bounds.Max.X - bounds.Min.X).Ceil(), (bounds.Max.Y - bounds.Min.Y).Ceil()
}

// strokeRect draws an outline of the given width inside r.
func strokeRect(dst draw.Image, r image.Rectangle, c color.Color, width int) {
	src := image.NewUniform(c)
	width = min(width, (r.Dx()+1)/2, (r.Dy()+1)/2)
	if width <= 0 {
		return
	}

	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}
