// Package thumbnail renders point images into small WebP marker thumbnails.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

// Marker thumbnail size in pixels.
const (
	Width  = 90
	Height = 45
)

const quality = 80

// ErrInvalidName is returned for names that are not a plain file name.
var ErrInvalidName = errors.New("invalid image name")

type entry struct {
	modTime time.Time
	data    []byte
}

// Renderer produces thumbnails for files in a directory and keeps them in memory
// until the source file changes.
type Renderer struct {
	cache  map[string]entry
	group  singleflight.Group
	dir    string
	mu     sync.RWMutex
	width  int
	height int
}

// New returns a renderer for images stored in dir.
func New(dir string) *Renderer {
	return &Renderer{
		dir:    dir,
		width:  Width,
		height: Height,
		cache:  make(map[string]entry),
	}
}

// Render returns the WebP thumbnail of the named image.
// Concurrent requests for the same image share one rendering.
func (r *Renderer) Render(name string) ([]byte, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, ErrInvalidName
	}

	path := filepath.Join(r.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrInvalidName
	}

	r.mu.RLock()
	cached, ok := r.cache[name]
	r.mu.RUnlock()
	if ok && cached.modTime.Equal(info.ModTime()) {
		return cached.data, nil
	}

	v, err, shared := r.group.Do(name, func() (any, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()

		img, format, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}

		data, err := Encode(img, r.width, r.height)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[name] = entry{modTime: info.ModTime(), data: data}
		r.mu.Unlock()

		log.Debug().
			Str("image", name).
			Str("format", format).
			Int("bytes", len(data)).
			Msg("Thumbnail rendered")

		return data, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		log.Trace().Str("image", name).Msg("Thumbnail rendering shared")
	}

	return v.([]byte), nil
}

// Encode scales img to cover a width×height box, crops the overflow around
// the center and encodes the result as lossy WebP.
func Encode(img image.Image, width, height int) ([]byte, error) {
	src := coverRect(img.Bounds(), width, height)
	if src.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, src, xdraw.Src, nil)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, dst, &webp.Options{Lossless: false, Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}

	return buf.Bytes(), nil
}

// coverRect returns the centered part of b with the target aspect ratio.
func coverRect(b image.Rectangle, width, height int) image.Rectangle {
	bw, bh := b.Dx(), b.Dy()
	if bw <= 0 || bh <= 0 || width <= 0 || height <= 0 {
		return image.Rectangle{}
	}

	// compare bw/bh with width/height without floating point
	if bw*height > bh*width {
		cw := bh * width / height
		x0 := b.Min.X + (bw-cw)/2
		return image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	}

	ch := bw * height / width
	y0 := b.Min.Y + (bh-ch)/2
	return image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
}
