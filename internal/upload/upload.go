// Package upload stores client images under a shared directory with
// collision-safe, traversal-safe names.
package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeChars = regexp.MustCompile(`[^\w\-.]`)

// SanitizeFilename strips path components and any character outside
// [A-Za-z0-9_.-], preventing directory traversal via the filename.
func SanitizeFilename(name string) string {
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	return unsafeChars.ReplaceAllString(name, "")
}

// Saver writes uploads into a shared directory. Concurrent uploads get
// distinct names via the timestamp prefix plus a uniqueness suffix on
// collision.
type Saver struct {
	dir string
}

func NewSaver(dir string) (*Saver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &Saver{dir: dir}, nil
}

// Save persists the reader's contents and returns the stored path.
func (s *Saver) Save(r io.Reader, filename string) (string, error) {
	base := SanitizeFilename(filename)
	if base == "" {
		return "", fmt.Errorf("filename %q sanitized to empty", filename)
	}

	stamped := time.Now().Format("20060102_150405") + "_" + base
	path := filepath.Join(s.dir, stamped)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		// Same second, same name: disambiguate with nanoseconds.
		stamped = time.Now().Format("20060102_150405.000000000") + "_" + base
		path = filepath.Join(s.dir, stamped)
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return path, nil
}
