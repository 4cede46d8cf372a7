package icons

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 20, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestPathFor(t *testing.T) {
	m := NewManager("/root")
	sha := "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"
	if got := m.PathFor(sha, ".PNG"); got != "/root/ab/cd/"+sha+".png" {
		t.Fatalf("unexpected path: %s", got)
	}
}

func TestSaveAndOpen(t *testing.T) {
	m := NewManager(t.TempDir())
	data := pngBytes(t, 8, 8)

	res, err := m.Save(context.Background(), bytes.NewReader(data), 1<<20, 1000)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.Width != 8 || res.Height != 8 || res.Mime != "image/png" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.HasSuffix(res.Path, res.SHA256+".png") || filepath.IsAbs(res.Path) {
		t.Fatalf("unexpected relative path %q", res.Path)
	}
	if _, err := os.Stat(m.PathFor(res.SHA256, ".png")); err != nil {
		t.Fatalf("icon not stored at PathFor: %v", err)
	}

	f, err := m.Open(res.Path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	stored, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(stored, data) {
		t.Fatalf("stored icon differs from upload")
	}

	// same content saves to the same place
	again, err := m.Save(context.Background(), bytes.NewReader(data), 1<<20, 1000)
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if again.Path != res.Path {
		t.Fatalf("expected identical path, got %q and %q", res.Path, again.Path)
	}
}

func TestSaveRejects(t *testing.T) {
	m := NewManager(t.TempDir())
	data := pngBytes(t, 8, 8)

	if _, err := m.Save(context.Background(), bytes.NewReader(data), int64(len(data)-1), 1000); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := m.Save(context.Background(), bytes.NewReader(data), 1<<20, 10); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage for pixel cap, got %v", err)
	}
	if _, err := m.Save(context.Background(), strings.NewReader("not an image"), 1<<20, 1000); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}

func TestOpenRefusesEscapes(t *testing.T) {
	m := NewManager(t.TempDir())
	for _, p := range []string{"../etc/passwd", "/etc/passwd", ""} {
		if _, err := m.Open(p); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("open %q: expected ErrNotExist, got %v", p, err)
		}
	}
}

func TestIsWritable(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "icons"))
	if err := m.IsWritable(); err != nil {
		t.Fatalf("expected writable root: %v", err)
	}
}
