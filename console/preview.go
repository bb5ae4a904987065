package console

import (
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"golang.org/x/image/draw"

	_ "image/jpeg"
	_ "image/png"
)

// DefaultPreviewWidth is the preview width in terminal columns.
const DefaultPreviewWidth = 80

// RenderPreview downscales an image file and returns it encoded as ANSI
// half-block art (one "▀" per two vertical pixels, truecolor foreground and
// background). width is the output width in columns; zero takes the default.
func RenderPreview(path string, width int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("console: opening preview image: %w", err)
	}
	defer f.Close()
	return renderPreviewFrom(f, width)
}

func renderPreviewFrom(r io.Reader, width int) (string, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("console: decoding preview image: %w", err)
	}

	if width <= 0 {
		width = DefaultPreviewWidth
	}

	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return "", fmt.Errorf("console: empty image")
	}

	// Terminal cells are roughly twice as tall as wide; half blocks give two
	// pixels per cell, so the pixel grid stays square at width x height.
	height := bounds.Dy() * width / bounds.Dx()
	if height < 2 {
		height = 2
	}
	if height%2 != 0 {
		height++
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, bounds, draw.Over, nil)

	var b strings.Builder
	for y := 0; y < height; y += 2 {
		for x := 0; x < width; x++ {
			tr, tg, tb := rgb(scaled, x, y)
			br, bg_, bb := rgb(scaled, x, y+1)
			fmt.Fprintf(&b, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀",
				tr, tg, tb, br, bg_, bb)
		}
		b.WriteString("\x1b[0m\n")
	}
	return b.String(), nil
}

func rgb(img *image.RGBA, x, y int) (uint8, uint8, uint8) {
	c := img.RGBAAt(x, y)
	return c.R, c.G, c.B
}

// ShowPreview renders the image to out, logging nothing and returning
// quietly on failure: previews are best-effort decoration.
func ShowPreview(out io.Writer, path string, width int) {
	art, err := RenderPreview(path, width)
	if err != nil {
		return
	}
	fmt.Fprintln(out, "--- Preview ---")
	fmt.Fprint(out, art)
	fmt.Fprintln(out, "---------------")
}
