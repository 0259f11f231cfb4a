package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"sync"

	"golang.org/x/image/draw"

	"github.com/msomdec/quill/internal/domain"
)

const (
	// AvatarSize is the bounding box avatars are shrunk to fit.
	AvatarSize = 125

	avatarKeyPrefix    = "profile_pics/"
	defaultAvatarBytes = 5 << 20
	maxAvatarPixels    = 40_000_000
)

// AvatarService normalises uploaded profile pictures and stores them.
type AvatarService struct {
	store    domain.AvatarStore
	maxBytes int

	placeholderOnce sync.Once
	placeholder     []byte
}

// NewAvatarService creates an AvatarService. A non-positive maxBytes
// falls back to 5MB.
func NewAvatarService(store domain.AvatarStore, maxBytes int) *AvatarService {
	if maxBytes <= 0 {
		maxBytes = defaultAvatarBytes
	}
	return &AvatarService{store: store, maxBytes: maxBytes}
}

// MaxBytes is the largest accepted upload.
func (s *AvatarService) MaxBytes() int {
	return s.maxBytes
}

// Store decodes a JPEG or PNG upload, shrinks it to fit within
// AvatarSize x AvatarSize and saves it under a random key, which is
// returned as the user's image reference.
func (s *AvatarService) Store(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: picture is empty", domain.ErrInvalidInput)
	}
	if len(data) > s.maxBytes {
		return "", fmt.Errorf("%w: picture must be at most %d bytes", domain.ErrInvalidInput, s.maxBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || (format != "jpeg" && format != "png") {
		return "", fmt.Errorf("%w: picture must be a jpg or png image", domain.ErrInvalidInput)
	}
	if cfg.Width*cfg.Height > maxAvatarPixels {
		return "", fmt.Errorf("%w: picture dimensions are too large", domain.ErrInvalidInput)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: picture could not be decoded", domain.ErrInvalidInput)
	}

	out, contentType, ext, err := encodeImage(thumbnail(src, AvatarSize), format)
	if err != nil {
		return "", fmt.Errorf("encode avatar: %w", err)
	}

	suffix, err := randomHex(8)
	if err != nil {
		return "", err
	}
	key := avatarKeyPrefix + suffix + ext

	if err := s.store.Save(ctx, key, contentType, out); err != nil {
		return "", fmt.Errorf("save avatar: %w", err)
	}
	return key, nil
}

// Open returns the bytes and content type for an image reference. The
// default reference is served from a generated placeholder.
func (s *AvatarService) Open(ctx context.Context, ref string) ([]byte, string, error) {
	if ref == domain.DefaultImageFile {
		return s.defaultAvatar(), "image/jpeg", nil
	}
	if !strings.HasPrefix(ref, avatarKeyPrefix) {
		return nil, "", domain.ErrNotFound
	}
	return s.store.Get(ctx, ref)
}

// Remove deletes a stored avatar. The default reference is never deleted.
func (s *AvatarService) Remove(ctx context.Context, ref string) error {
	if ref == "" || ref == domain.DefaultImageFile {
		return nil
	}
	return s.store.Delete(ctx, ref)
}

func (s *AvatarService) defaultAvatar() []byte {
	s.placeholderOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, AvatarSize, AvatarSize))
		draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}}, image.Point{}, draw.Src)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, nil); err == nil {
			s.placeholder = buf.Bytes()
		}
	})
	return s.placeholder
}

// thumbnail scales src down to fit within size x size, keeping its aspect
// ratio. Images already small enough are returned unchanged.
func thumbnail(src image.Image, size int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= size && h <= size {
		return src
	}

	var nw, nh int
	if w >= h {
		nw = size
		nh = max(1, (h*size+w/2)/w)
	} else {
		nh = size
		nw = max(1, (w*size+h/2)/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func encodeImage(img image.Image, format string) ([]byte, string, string, error) {
	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", "", err
		}
		return buf.Bytes(), "image/png", ".png", nil
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, "", "", err
		}
		return buf.Bytes(), "image/jpeg", ".jpg", nil
	}
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random name: %w", err)
	}
	return hex.EncodeToString(b), nil
}
