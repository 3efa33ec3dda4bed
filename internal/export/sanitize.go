package export

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/zash3dit/zashedit/internal/apperr"
)

// SanitizeName drops control characters, replaces anything outside a small
// file-name-safe set with '_' and cuts the result to maxLen runes.
func SanitizeName(s string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case unicode.IsLetter(r), unicode.IsDigit(r), strings.ContainsRune(" -_.,()", r):
			return r
		default:
			return '_'
		}
	}, s)
	cleaned = strings.TrimSpace(cleaned)
	if runes := []rune(cleaned); maxLen > 0 && len(runes) > maxLen {
		cleaned = strings.TrimSpace(string(runes[:maxLen]))
	}
	return cleaned
}

// ValidateOutputDir accepts an existing, clean directory path without
// traversal segments.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return apperr.Invalid(apperr.StageExport, "output_dir is required")
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return apperr.Invalid(apperr.StageExport, "output_dir cannot contain path traversal")
		}
	}
	if filepath.Clean(dir) != dir {
		return apperr.Invalid(apperr.StageExport, "output_dir must be a clean path")
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.Invalid(apperr.StageExport, "output_dir does not exist")
		}
		return apperr.Wrap(apperr.KindInvalidInput, apperr.StageExport, "invalid output_dir", err)
	}
	if !info.IsDir() {
		return apperr.Invalid(apperr.StageExport, "output_dir is not a directory")
	}
	return nil
}
