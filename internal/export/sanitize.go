package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const maxFolderChars = 120

// SanitizeName keeps letters, digits and a small set of punctuation, replacing
// everything else with '_' and dropping control characters.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

// FolderName turns a category name into a directory name. Names that sanitize
// to nothing (or to dot segments) fall back to the category id.
func FolderName(c CategoryRef) string {
	name := strings.Trim(SanitizeName(c.Name, maxFolderChars), ". ")
	if name == "" {
		return fmt.Sprintf("category_%d", c.ID)
	}
	return name
}

// ValidateDestination requires an existing, clean, absolute directory.
func ValidateDestination(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: destination is required", ErrInvalidDestination)
	}

	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("%w: destination cannot contain path traversal", ErrInvalidDestination)
		}
	}

	if !filepath.IsAbs(dir) {
		return fmt.Errorf("%w: destination must be absolute", ErrInvalidDestination)
	}
	if filepath.Clean(dir) != dir {
		return fmt.Errorf("%w: destination must be a clean path", ErrInvalidDestination)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: destination does not exist", ErrInvalidDestination)
		}
		return fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: destination is not a directory", ErrInvalidDestination)
	}

	return nil
}
