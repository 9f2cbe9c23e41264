// Package imageio decodes, fetches and encodes images for the detection pipeline.
package imageio

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
)

// ErrDecode marks input that is not a supported image.
var ErrDecode = errors.New("cannot decode image")

// MaxFetchSize caps the body read by Fetch.
const MaxFetchSize = 32 << 20

// Decode parses PNG, JPEG, GIF, TIFF or BMP data, applying the EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Open reads and decodes an image file.
func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return img, nil
}

// Fetch downloads url with client. Responses outside 2xx are errors.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid image URL: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch image: remote returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) > MaxFetchSize {
		return nil, fmt.Errorf("image at %s exceeds %d bytes", url, MaxFetchSize)
	}
	return data, nil
}

// IsURL reports whether source looks like an http(s) URL.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Load reads an image from a URL or a local path.
func Load(ctx context.Context, client *http.Client, source string) (image.Image, error) {
	if !IsURL(source) {
		return Open(source)
	}

	data, err := Fetch(ctx, client, source)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL returns img as a base64 PNG data URL suitable for an <img> src.
func DataURL(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Save writes img to path, choosing JPEG for .jpg/.jpeg and PNG otherwise.
func Save(path string, img image.Image) error {
	encoder := imgio.PNGEncoder()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		encoder = imgio.JPEGEncoder(95)
	}

	if err := imgio.Save(path, img, encoder); err != nil {
		return fmt.Errorf("failed to save image %s: %w", path, err)
	}
	return nil
}
