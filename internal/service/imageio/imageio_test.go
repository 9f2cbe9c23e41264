package imageio

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 10, 200, 30, 255
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	img, err := Decode(pngBytes(t, testImage(8, 4)))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Size() != image.Pt(8, 4) {
		t.Errorf("Unexpected size %v", img.Bounds().Size())
	}

	if _, err := Decode([]byte("definitely not an image")); !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestFetch(t *testing.T) {
	body := pngBytes(t, testImage(3, 3))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer server.Close()

	data, err := Fetch(context.Background(), server.Client(), server.URL+"/cat.png")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !bytes.Equal(data, body) {
		t.Error("Fetched body differs")
	}

	if _, err := Fetch(context.Background(), server.Client(), server.URL+"/missing"); err == nil {
		t.Error("Expected error for 404")
	}
}

func TestLoad(t *testing.T) {
	body := pngBytes(t, testImage(5, 7))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	img, err := Load(context.Background(), server.Client(), server.URL)
	if err != nil {
		t.Fatalf("Load URL failed: %v", err)
	}
	if img.Bounds().Size() != image.Pt(5, 7) {
		t.Errorf("Unexpected size %v", img.Bounds().Size())
	}

	path := filepath.Join(t.TempDir(), "local.png")
	if err := Save(path, testImage(6, 2)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	img, err = Load(context.Background(), nil, path)
	if err != nil {
		t.Fatalf("Load file failed: %v", err)
	}
	if img.Bounds().Size() != image.Pt(6, 2) {
		t.Errorf("Unexpected size %v", img.Bounds().Size())
	}
}

func TestIsURL(t *testing.T) {
	tests := []struct {
		source   string
		expected bool
	}{
		{"http://example.com/a.jpg", true},
		{"https://example.com/a.jpg", true},
		{"ftp://example.com/a.jpg", false},
		{"/tmp/a.jpg", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsURL(tt.source); got != tt.expected {
			t.Errorf("IsURL(%q) = %v, expected %v", tt.source, got, tt.expected)
		}
	}
}

func TestDataURL(t *testing.T) {
	src := testImage(4, 4)

	url, err := DataURL(src)
	if err != nil {
		t.Fatalf("DataURL failed: %v", err)
	}

	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("Unexpected prefix: %.30s", url)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	if err != nil {
		t.Fatalf("Invalid base64: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Invalid png: %v", err)
	}
	r, g, b, _ := img.At(2, 2).RGBA()
	if (color.RGBA64{uint16(r), uint16(g), uint16(b), 0xffff}) != (color.RGBA64{10 * 257, 200 * 257, 30 * 257, 0xffff}) {
		t.Errorf("Pixel changed after round trip: %v %v %v", r>>8, g>>8, b>>8)
	}
}

func TestSave_JPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jpg")
	if err := Save(path, testImage(16, 16)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	img, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if img.Bounds().Size() != image.Pt(16, 16) {
		t.Errorf("Unexpected size %v", img.Bounds().Size())
	}

	if err := Save(filepath.Join(t.TempDir(), "missing", "dir.png"), testImage(1, 1)); err == nil {
		t.Error("Expected error for missing directory")
	}
}
