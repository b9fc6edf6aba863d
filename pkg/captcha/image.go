package captcha

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	ImageWidth  = 120
	ImageHeight = 40
	noiseLines  = 20
)

// renderPNG draws code at half resolution with the 7x13 bitmap face, scales it up
// to the final size and crosses it with noise lines.
func renderPNG(code string) ([]byte, error) {
	small := image.NewRGBA(image.Rect(0, 0, ImageWidth/2, ImageHeight/2))
	draw.Draw(small, small.Bounds(), image.NewUniform(color.RGBA{R: 245, G: 245, B: 245, A: 255}), image.Point{}, draw.Src)

	d := &font.Drawer{Dst: small, Face: basicfont.Face7x13}
	for i, ch := range code {
		d.Src = image.NewUniform(darkColor())
		d.Dot = fixed.P(6+i*13, 13+rand.IntN(4))
		d.DrawString(string(ch))
	}

	img := image.NewRGBA(image.Rect(0, 0, ImageWidth, ImageHeight))
	draw.NearestNeighbor.Scale(img, img.Bounds(), small, small.Bounds(), draw.Src, nil)

	for i := 0; i < noiseLines; i++ {
		drawLine(img,
			rand.IntN(ImageWidth), rand.IntN(ImageHeight),
			rand.IntN(ImageWidth), rand.IntN(ImageHeight),
			lightColor())
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func darkColor() color.RGBA {
	return color.RGBA{R: uint8(rand.IntN(100)), G: uint8(rand.IntN(100)), B: uint8(rand.IntN(100)), A: 255}
}

func lightColor() color.RGBA {
	return color.RGBA{R: uint8(100 + rand.IntN(156)), G: uint8(100 + rand.IntN(156)), B: uint8(100 + rand.IntN(156)), A: 255}
}

// drawLine is Bresenham's line algorithm
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
