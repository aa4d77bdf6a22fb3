package errors

import (
	"path/filepath"
	"strings"
)

// MaxNameLength bounds vertex names accepted from callers and peers.
const MaxNameLength = 1 << 10

// ValidateName validates a raw vertex name.
//
// Validation rules:
//   - Name cannot be empty
//   - Maximum length of MaxNameLength bytes
func ValidateName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "vertex name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return New(ErrCodeInvalidInput, "vertex name too long (%d bytes, max %d)", len(name), MaxNameLength)
	}
	return nil
}

// ValidateStorePath validates a store directory path.
//
// Validation rules:
//   - Path cannot be empty
//   - No null bytes
//   - Path must not resolve to the filesystem root
func ValidateStorePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return New(ErrCodeInvalidPath, "store path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return New(ErrCodeInvalidPath, "store path contains null byte")
	}
	clean := filepath.Clean(path)
	if clean == string(filepath.Separator) {
		return New(ErrCodeInvalidPath, "store path cannot be the filesystem root")
	}
	return nil
}
