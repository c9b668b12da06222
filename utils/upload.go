package utils

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// UploadURLPrefix is the public path uploaded images are served under.
const UploadURLPrefix = "/uploads/"

// ErrUnsupportedImage is returned for uploads whose extension is not an image.
var ErrUnsupportedImage = errors.New("unsupported image type")

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// SaveUpload copies an uploaded image into dir as "<unix-millis>-<name>" and
// returns its public reference, e.g. "/uploads/1700000000000-oak.png".
func SaveUpload(dir string, file multipart.File, header *multipart.FileHeader, now time.Time) (string, error) {
	name := sanitizeFilename(header.Filename)
	if !imageExtensions[strings.ToLower(filepath.Ext(name))] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, header.Filename)
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	filename := fmt.Sprintf("%d-%s", now.UnixMilli(), name)
	dst, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	return UploadURLPrefix + filename, nil
}

// RemoveUpload deletes the file behind a reference returned by SaveUpload.
// Empty or foreign references are ignored.
func RemoveUpload(dir, ref string) error {
	if !strings.HasPrefix(ref, UploadURLPrefix) {
		return nil
	}
	name := filepath.Base(strings.TrimPrefix(ref, UploadURLPrefix))
	err := os.Remove(filepath.Join(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return "image"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}
