// Package media stores user-uploaded files (avatars) on an afero filesystem
// rooted at the configured media directory.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path"
	"strings"

	"todoTracker/internal/logger"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const AvatarDir = "avatars"

var (
	ErrNotImage = errors.New("upload a valid image. The file you uploaded was either not an image or a corrupted image")
	ErrTooLarge = errors.New("uploaded file is too large")
	ErrEmpty    = errors.New("the submitted file is empty")
)

// Upload is a file received from a multipart form.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// imageExt maps decoder format names to stored file extensions.
var imageExt = map[string]string{
	"png":  ".png",
	"jpeg": ".jpg",
	"gif":  ".gif",
	"bmp":  ".bmp",
	"webp": ".webp",
}

// DetectImage checks that data decodes as a supported image and returns the
// decoder's format name. The declared content type is not trusted.
func DetectImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return "", ErrNotImage
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrNotImage
	}
	if _, ok := imageExt[format]; !ok {
		return "", ErrNotImage
	}
	return format, nil
}

type AvatarStore struct {
	fs       afero.Fs
	maxBytes int64
}

// NewAvatarStore keeps files under root on the OS filesystem.
func NewAvatarStore(root string, maxBytes int64) (*AvatarStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating media root: %w", err)
	}
	return NewAvatarStoreFs(afero.NewBasePathFs(afero.NewOsFs(), root), maxBytes), nil
}

// NewAvatarStoreFs uses fs as the media root, e.g. afero.NewMemMapFs() in tests.
func NewAvatarStoreFs(fs afero.Fs, maxBytes int64) *AvatarStore {
	return &AvatarStore{fs: fs, maxBytes: maxBytes}
}

func (s *AvatarStore) MaxBytes() int64 {
	return s.maxBytes
}

// Fs exposes the media root, e.g. for serving files over HTTP.
func (s *AvatarStore) Fs() afero.Fs {
	return s.fs
}

// Save validates up and writes it as avatars/<user>-<uuid><ext>, returning
// the path relative to the media root.
func (s *AvatarStore) Save(ctx context.Context, userID int64, up Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.maxBytes > 0 && int64(len(up.Data)) > s.maxBytes {
		return "", ErrTooLarge
	}
	format, err := DetectImage(up.Data)
	if err != nil {
		return "", err
	}

	if err := s.fs.MkdirAll(AvatarDir, 0o755); err != nil {
		return "", fmt.Errorf("creating avatar dir: %w", err)
	}

	name := path.Join(AvatarDir, fmt.Sprintf("%d-%s%s", userID, uuid.NewString(), imageExt[format]))
	if err := afero.WriteFile(s.fs, name, up.Data, 0o644); err != nil {
		return "", fmt.Errorf("writing avatar: %w", err)
	}

	logger.Info("Media: Avatar stored",
		zap.Int64("user_id", userID),
		zap.String("path", name),
		zap.Int("bytes", len(up.Data)))
	return name, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *AvatarStore) Remove(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := path.Clean("/" + name)[1:]
	if !strings.HasPrefix(clean, AvatarDir+"/") {
		return fmt.Errorf("refusing to remove %q outside %s", name, AvatarDir)
	}
	if err := s.fs.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing avatar: %w", err)
	}
	return nil
}
