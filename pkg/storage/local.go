package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// DefaultProfilePicture is rendered for students without an uploaded picture.
const DefaultProfilePicture = "/static/img/default-avatar.svg"

var ErrUnsupportedImage = errors.New("upload a valid image: jpg, jpeg, png, gif, webp or bmp")

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".bmp": {},
}

// ValidateImageName rejects file names that do not look like an image.
func ValidateImageName(fileName string) error {
	if _, ok := imageExtensions[strings.ToLower(filepath.Ext(fileName))]; !ok {
		return ErrUnsupportedImage
	}
	return nil
}

// PictureURL returns url, or the default picture when url is nil or empty.
func PictureURL(url *string) string {
	if url == nil || *url == "" {
		return DefaultProfilePicture
	}
	return *url
}

type localStorage struct {
	root    string
	baseURL string
}

// NewLocalStorage stores images under root and serves them below baseURL
// (e.g. MEDIA_ROOT=./media, MEDIA_URL=/media).
func NewLocalStorage(root, baseURL string) (ImageStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("local storage root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root: %w", err)
	}

	return &localStorage{
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (s *localStorage) UploadImage(ctx context.Context, r io.Reader, folder, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(fileName))
	dir := filepath.Join(s.root, filepath.Clean("/"+folder))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload folder: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	return s.baseURL + path.Join("/", folder, name), nil
}

func (s *localStorage) DeleteImage(ctx context.Context, fileURL string) error {
	rel, ok := strings.CutPrefix(fileURL, s.baseURL+"/")
	if !ok || rel == "" {
		return fmt.Errorf("url %s is not served by local storage", fileURL)
	}

	err := os.Remove(filepath.Join(s.root, filepath.Clean("/"+rel)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image file: %w", err)
	}
	return nil
}
