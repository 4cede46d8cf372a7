package icons

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"
)

var ErrTooLarge = errors.New("icon too large")
var ErrInvalidImage = errors.New("invalid icon image")

// Manager stores tag icons on disk, addressed by content hash.
type Manager struct {
	root string
}

func NewManager(root string) *Manager {
	return &Manager{root: root}
}

type SaveResult struct {
	SHA256 string
	Bytes  int64
	Mime   string
	Width  int
	Height int
	// Path is relative to the manager root and is what gets stored on the tag.
	Path string
}

// Save streams the upload to a temp file while hashing it, checks it decodes as an
// image within maxPixels, and moves it to its content-addressed location.
func (m *Manager) Save(ctx context.Context, r io.Reader, maxBytes int64, maxPixels int) (*SaveResult, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, err
	}

	lim := &io.LimitedReader{R: r, N: maxBytes + 1}
	br := bufio.NewReader(lim)
	peek, _ := br.Peek(512)
	mimeType := http.DetectContentType(peek)

	tmp, err := os.CreateTemp(m.root, "upload-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	hash := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hash), br)
	if err != nil {
		return nil, err
	}
	if lim.N <= 0 || written > maxBytes {
		return nil, ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	cfg, format, err := image.DecodeConfig(tmp)
	if err != nil {
		return nil, ErrInvalidImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return nil, ErrInvalidImage
	}

	shaHex := hex.EncodeToString(hash.Sum(nil))
	rel := relPath(shaHex, "."+format)
	dst := m.PathFor(shaHex, "."+format)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, err
	}
	if _, err := os.Stat(dst); err != nil {
		if err := tmp.Close(); err != nil {
			return nil, err
		}
		if err := os.Rename(tmp.Name(), dst); err != nil {
			return nil, err
		}
	}

	return &SaveResult{
		SHA256: shaHex,
		Bytes:  written,
		Mime:   mimeType,
		Width:  cfg.Width,
		Height: cfg.Height,
		Path:   rel,
	}, nil
}

// Open resolves a stored relative path. Paths escaping the root are refused.
func (m *Manager) Open(rel string) (*os.File, error) {
	clean := filepath.Clean(rel)
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return nil, os.ErrNotExist
	}
	return os.Open(filepath.Join(m.root, clean))
}

// PathFor is where an icon with the given hash and extension lives under the root.
func (m *Manager) PathFor(sha, ext string) string {
	return filepath.Join(m.root, relPath(sha, ext))
}

func (m *Manager) IsWritable() error {
	testPath := filepath.Join(m.root, ".writetest")
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(testPath, []byte("ok"), 0o644); err != nil {
		return err
	}
	return os.Remove(testPath)
}

func relPath(sha, ext string) string {
	return filepath.Join(sha[0:2], sha[2:4], sha+strings.ToLower(ext))
}
