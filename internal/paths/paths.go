// Package paths provides canonical helpers for vault file paths:
// - absolute, cleaned, NFC-normalized paths used as state keys
// - file stems used as wiki-link targets
// - containment checks against the vault root and configured directories
package paths

import (
	"errors"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrPathOutsideVault is returned when a path resolves outside the vault root.
var ErrPathOutsideVault = errors.New("path is outside vault")

// Normalize returns p as an absolute, cleaned, NFC-normalized path.
//
// macOS file systems hand back decomposed (NFD) names, while typed links are
// usually composed; normalizing both sides keeps map lookups stable.
func Normalize(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return norm.NFC.String(filepath.Clean(p))
}

// Stem returns the NFC-normalized file name of p without its extension.
func Stem(p string) string {
	base := filepath.Base(p)
	return norm.NFC.String(strings.TrimSuffix(base, filepath.Ext(base)))
}

// NormalizeDirRoot normalizes a directory root to have:
// - no leading slash
// - exactly one trailing slash (unless empty)
//
// Examples:
// - "/daily/" -> "daily/"
// - "daily"   -> "daily/"
// - ""        -> ""
func NormalizeDirRoot(root string) string {
	root = filepath.ToSlash(root)
	root = strings.Trim(root, "/")
	for strings.Contains(root, "//") {
		root = strings.ReplaceAll(root, "//", "/")
	}
	if root == "" {
		return ""
	}
	return root + "/"
}

// IsWithin reports whether p equals dir or lies underneath it.
func IsWithin(dir, p string) bool {
	if dir == "" || p == "" {
		return false
	}
	rel, err := filepath.Rel(Normalize(dir), Normalize(p))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// IsStrictlyWithin reports whether p lies underneath dir and is not dir itself.
func IsStrictlyWithin(dir, p string) bool {
	return IsWithin(dir, p) && Normalize(dir) != Normalize(p)
}

// ValidateWithinVault returns ErrPathOutsideVault if p is not inside vaultRoot.
func ValidateWithinVault(vaultRoot, p string) error {
	if !IsWithin(vaultRoot, p) {
		return ErrPathOutsideVault
	}
	return nil
}

// Resolve joins a relative path onto the vault root. Absolute paths are
// returned normalized.
func Resolve(vaultRoot, p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return Normalize(p)
	}
	return Normalize(filepath.Join(vaultRoot, p))
}

// Rel returns p relative to the vault root using forward slashes, or p itself
// when it is outside the vault.
func Rel(vaultRoot, p string) string {
	rel, err := filepath.Rel(Normalize(vaultRoot), Normalize(p))
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return filepath.ToSlash(rel)
}
