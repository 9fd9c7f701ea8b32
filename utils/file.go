// utils/file.go
package utils

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// DiskStorage keeps uploaded bot assets under a local directory that the HTTP
// server exposes at /uploads. Used when R2 is not configured.
type DiskStorage struct {
	Root    string
	BaseURL string
}

// NewDiskStorage creates root if it doesn't exist.
func NewDiskStorage(root, baseURL string) (*DiskStorage, error) {
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, err
	}
	return &DiskStorage{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// UploadFile saves the uploaded file as Root/key and returns its public URL.
func (d *DiskStorage) UploadFile(_ context.Context, fileHeader *multipart.FileHeader, key string) (string, error) {
	destPath := filepath.Join(d.Root, filepath.FromSlash(key))
	if !strings.HasPrefix(destPath, filepath.Clean(d.Root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal upload key: %s", key)
	}

	// ✅ Ensure the directory for the destination file exists
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return "", err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return PublicURL(d.BaseURL+"/uploads", key), nil
}
