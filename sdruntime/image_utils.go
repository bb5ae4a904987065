package sdruntime

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
)

// PNG magic bytes for file identification.
var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Image validation errors.
var (
	ErrImageEmpty      = errors.New("sdruntime: image data is empty")
	ErrImageNotPNG     = errors.New("sdruntime: image data is not a valid PNG")
	ErrImageDecodeFail = errors.New("sdruntime: failed to decode image")
	ErrImageBadSize    = errors.New("sdruntime: invalid image dimensions")
)

// IsPNG checks if the given data starts with PNG magic bytes.
func IsPNG(data []byte) bool {
	return len(data) >= len(pngMagic) && bytes.Equal(data[:len(pngMagic)], pngMagic)
}

// ValidateImageData validates that data is a decodable PNG image.
func ValidateImageData(data []byte) error {
	if len(data) == 0 {
		return ErrImageEmpty
	}
	if !IsPNG(data) {
		return ErrImageNotPNG
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrImageDecodeFail, err)
	}
	return nil
}

// EncodeToPNG encodes raw RGB pixels (3 bytes per pixel, as produced by
// stable-diffusion.cpp) to PNG format.
func EncodeToPNG(pixels []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: width=%d height=%d", ErrImageBadSize, width, height)
	}
	expected := width * height * 3
	if len(pixels) != expected {
		return nil, fmt.Errorf("%w: got %d pixel bytes, want %d",
			ErrImageBadSize, len(pixels), expected)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		img.Pix[i*4+0] = pixels[i*3+0]
		img.Pix[i*4+1] = pixels[i*3+1]
		img.Pix[i*4+2] = pixels[i*3+2]
		img.Pix[i*4+3] = 0xFF
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("sdruntime: png encode: %w", err)
	}
	return buf.Bytes(), nil
}
