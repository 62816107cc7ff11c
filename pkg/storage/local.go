package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// NamePlaceholder is replaced by the sanitised record name in output patterns.
const NamePlaceholder = "{name}"

// SanitizeFilename replaces characters that are invalid in file names on
// common filesystems and drops control characters.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	for _, c := range []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"} {
		name = strings.ReplaceAll(name, c, "_")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "unnamed"
	}
	return name
}

// OutputPath expands pattern with name and places it in dir.
func OutputPath(dir, pattern, name string) string {
	return filepath.Join(dir, strings.ReplaceAll(pattern, NamePlaceholder, SanitizeFilename(name)))
}

// EnsureDir creates dir and its parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
