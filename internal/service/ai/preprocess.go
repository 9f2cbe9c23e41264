package ai

import (
	"fmt"
	"image"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	detrShortestEdge = 800
	detrLongestEdge  = 1333
)

var (
	imageNetMean = [3]float32{0.485, 0.456, 0.406}
	imageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Normalize returns a copy of img as an 8-bit NRGBA bitmap anchored at (0,0).
func Normalize(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// FromPixels builds a bitmap from an interleaved HWC byte array with 1 (gray),
// 3 (RGB) or 4 (RGBA) channels.
func FromPixels(width, height, channels int, pix []byte) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if channels != 1 && channels != 3 && channels != 4 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	if len(pix) != width*height*channels {
		return nil, fmt.Errorf("expected %d bytes for %dx%dx%d, got %d", width*height*channels, width, height, channels, len(pix))
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		src := pix[i*channels : (i+1)*channels]
		dst := img.Pix[i*4 : i*4+4]
		switch channels {
		case 1:
			dst[0], dst[1], dst[2], dst[3] = src[0], src[0], src[0], 255
		case 3:
			dst[0], dst[1], dst[2], dst[3] = src[0], src[1], src[2], 255
		case 4:
			copy(dst, src)
		}
	}
	return img, nil
}

// ParsePixelShape parses a "WxHxC" shape such as "640x480x3".
func ParsePixelShape(shape string) (int, int, int, error) {
	parts := strings.Split(strings.ToLower(shape), "x")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid pixel shape %q, expected WxHxC", shape)
	}

	var dims [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid pixel shape %q: %w", shape, err)
		}
		dims[i] = v
	}
	return dims[0], dims[1], dims[2], nil
}

// LoadPixels reads a raw interleaved HWC byte dump of the given shape.
func LoadPixels(path, shape string) (*image.NRGBA, error) {
	width, height, channels, err := ParsePixelShape(shape)
	if err != nil {
		return nil, err
	}

	pix, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pixels: %w", err)
	}
	return FromPixels(width, height, channels, pix)
}

// DETRInputSize computes the resized (width, height) used by DETR: the shortest
// edge becomes 800 unless that pushes the longest edge beyond 1333.
func DETRInputSize(width, height int) (int, int) {
	minOrig := float64(min(width, height))
	maxOrig := float64(max(width, height))

	size := float64(detrShortestEdge)
	if maxOrig/minOrig*size > detrLongestEdge {
		size = math.Round(detrLongestEdge * minOrig / maxOrig)
	}

	if (height <= width && float64(height) == size) || (width <= height && float64(width) == size) {
		return width, height
	}
	if width < height {
		return int(size), int(size * float64(height) / float64(width))
	}
	return int(size * float64(width) / float64(height)), int(size)
}

// PrepareDETRInput resizes img for DETR and returns an NCHW float32 tensor
// normalized with the ImageNet mean and standard deviation, plus the tensor's
// spatial size.
func PrepareDETRInput(img *image.NRGBA) ([]float32, image.Point) {
	b := img.Bounds()
	w, h := DETRInputSize(b.Dx(), b.Dy())

	resized := img
	if w != b.Dx() || h != b.Dy() {
		resized = imaging.Resize(img, w, h, imaging.Linear)
	}

	plane := w * h
	tensor := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				v := float32(row[x*4+c]) / 255
				tensor[c*plane+y*w+x] = (v - imageNetMean[c]) / imageNetStd[c]
			}
		}
	}

	return tensor, image.Pt(w, h)
}
