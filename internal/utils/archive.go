package utils

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Target receives extracted entries. Names are slash separated and relative
// to the target root.
type Target interface {
	MkdirAll(name string) error
	Create(name string, mode os.FileMode) (io.WriteCloser, error)
}

// DirTarget extracts onto the local disk under a root directory.
type DirTarget string

func (d DirTarget) MkdirAll(name string) error {
	return os.MkdirAll(filepath.Join(string(d), filepath.FromSlash(name)), 0755)
}

func (d DirTarget) Create(name string, mode os.FileMode) (io.WriteCloser, error) {
	return os.OpenFile(filepath.Join(string(d), filepath.FromSlash(name)), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
}

// ExtractZip extracts the zip file at src into dst and returns the number of
// files written. Entries escaping the root are rejected.
func ExtractZip(src string, dst Target) (int, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("ExtractZip: open failed: %w", err)
	}
	defer r.Close()

	files := 0
	for _, f := range r.File {
		name, err := cleanEntry(f.Name)
		if err != nil {
			return files, err
		}
		if name == "" {
			continue
		}

		if f.FileInfo().IsDir() {
			if err := dst.MkdirAll(name); err != nil {
				return files, fmt.Errorf("ExtractZip: mkdir %s failed: %w", name, err)
			}
			continue
		}
		if dir := path.Dir(name); dir != "." {
			if err := dst.MkdirAll(dir); err != nil {
				return files, fmt.Errorf("ExtractZip: mkdir %s failed: %w", dir, err)
			}
		}
		if err := extractFile(f, name, dst); err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

func extractFile(f *zip.File, name string, dst Target) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("ExtractZip: open %s failed: %w", name, err)
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	w, err := dst.Create(name, mode)
	if err != nil {
		return fmt.Errorf("ExtractZip: create %s failed: %w", name, err)
	}
	if _, err := io.Copy(w, rc); err != nil {
		w.Close()
		return fmt.Errorf("ExtractZip: copy %s failed: %w", name, err)
	}
	return w.Close()
}

// cleanEntry normalises an archive entry name. Zip Slip guard.
func cleanEntry(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	clean := path.Clean("/" + name)
	if clean == "/" {
		return "", nil
	}
	if strings.HasPrefix(name, "/") || strings.Contains("/"+name+"/", "/../") {
		return "", fmt.Errorf("illegal file path: %s", name)
	}
	return strings.TrimPrefix(clean, "/"), nil
}
