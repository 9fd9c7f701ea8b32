// utils/unzip.go
package utils

import (
	"archive/zip"
	"errors"
	"fmt"
	"mime/multipart"
	"path"
	"strings"
)

var ErrEmptyArchive = errors.New("archive contains no files")

// ValidateZipArchive opens an uploaded .zip without extracting it and returns
// the number of files inside. Archives with entries that would escape the
// extraction directory (zip slip) are rejected.
func ValidateZipArchive(fileHeader *multipart.FileHeader) (int, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return 0, err
	}
	defer file.Close()

	r, err := zip.NewReader(file, fileHeader.Size)
	if err != nil {
		return 0, fmt.Errorf("not a valid zip archive: %w", err)
	}

	files := 0
	for _, f := range r.File {
		// ✅ Security: prevent zip slip (path traversal)
		name := path.Clean(strings.ReplaceAll(f.Name, "\\", "/"))
		if path.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
			return 0, fmt.Errorf("illegal file path: %s", f.Name)
		}
		if !f.FileInfo().IsDir() {
			files++
		}
	}
	if files == 0 {
		return 0, ErrEmptyArchive
	}
	return files, nil
}
