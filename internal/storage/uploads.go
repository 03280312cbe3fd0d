// Manages the holding area for uploaded workbooks.

package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/maruel/ksid"
)

// uploadExtensions are the workbook formats the XLSX codec can read.
var uploadExtensions = []string{".xlsx", ".xlsm"}

// UploadArea stores uploaded files under a single directory.
type UploadArea struct {
	dir      string
	maxBytes int64
}

// NewUploadArea creates the directory if needed. maxBytes of 0 means no limit.
func NewUploadArea(dir string, maxBytes int64) (*UploadArea, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &UploadArea{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the upload directory.
func (u *UploadArea) Dir() string {
	return u.dir
}

// Save copies r to a new file named after name and returns its path. The
// stored name is prefixed with a unique ID so concurrent uploads never clash.
func (u *UploadArea) Save(name string, r io.Reader) (string, error) {
	base := sanitizeName(name)
	if base == "" {
		return "", fmt.Errorf("%w: file name is required", ErrValidation)
	}
	if ext := strings.ToLower(filepath.Ext(base)); !slices.Contains(uploadExtensions, ext) {
		return "", fmt.Errorf("%w: unsupported file type %q, expected one of %s", ErrValidation, ext, strings.Join(uploadExtensions, ", "))
	}

	path := filepath.Join(u.dir, ksid.NewID().String()+"_"+base)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //nolint:gosec // G302: data files are world readable
	if err != nil {
		return "", fmt.Errorf("failed to create upload: %w", err)
	}
	src := r
	if u.maxBytes > 0 {
		src = io.LimitReader(r, u.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err == nil && u.maxBytes > 0 && n > u.maxBytes {
		err = fmt.Errorf("%w: upload exceeds %d bytes", ErrValidation, u.maxBytes)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// Remove deletes a stored upload. Missing files are ignored.
func (u *UploadArea) Remove(path string) {
	_ = os.Remove(path)
}

// Clear deletes every file in the upload directory and returns how many
// were removed.
func (u *UploadArea) Clear() (int, error) {
	entries, err := os.ReadDir(u.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(u.dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// sanitizeName reduces an uploaded file name to a safe base name.
func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}
