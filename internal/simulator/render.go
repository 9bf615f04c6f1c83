package simulator

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"simcapture-go/internal/projection"
)

var (
	skyColor    = color.RGBA{R: 135, G: 180, B: 230, A: 255}
	groundColor = color.RGBA{R: 70, G: 70, B: 75, A: 255}
	targetColor = color.RGBA{R: 220, G: 60, B: 40, A: 255}
	hudColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Renderer draws the scene as flat boxes and encodes it as JPEG.
type Renderer struct {
	scene   *Scene
	quality int
	frames  uint64
}

func NewRenderer(scene *Scene, quality int) *Renderer {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &Renderer{scene: scene, quality: quality}
}

func (r *Renderer) CaptureFrame() ([]byte, error) {
	cam := r.scene.Camera()
	width, height := cam.PixelWidth(), cam.PixelHeight()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	horizon := height / 2
	draw.Draw(img, image.Rect(0, 0, width, horizon), image.NewUniform(skyColor), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, horizon, width, height), image.NewUniform(groundColor), image.Point{}, draw.Src)

	for _, h := range r.scene.Targets() {
		e, ok := r.scene.world.Get(h)
		if !ok {
			continue
		}
		b := projection.ProjectEntity(cam, e)
		if !b.InBounds() || b.Width == 0 || b.Height == 0 {
			continue
		}
		draw.Draw(img, boxRect(b, width, height), image.NewUniform(targetColor), image.Point{}, draw.Src)
	}

	r.frames++
	r.drawHUD(img, fmt.Sprintf("%06d %.0fm", r.frames, r.scene.Progress()))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawHUD(img *image.RGBA, label string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(hudColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, 13),
	}
	d.DrawString(label)
}

// boxRect converts viewport bounds (centre, bottom-left origin) into an image
// rectangle (top-left origin).
func boxRect(b projection.Bounds, width, height int) image.Rectangle {
	cx := b.X * float64(width)
	cy := (1 - b.Y) * float64(height)
	x0 := int(math.Round(cx - b.Width/2))
	y0 := int(math.Round(cy - b.Height/2))
	x1 := int(math.Round(cx + b.Width/2))
	y1 := int(math.Round(cy + b.Height/2))
	return image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, width, height))
}
