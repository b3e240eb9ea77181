// Package pathkey canonicalizes filesystem paths so every store lookup and
// cache key agree on identity (spec invariant I1/I9).
package pathkey

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Canonicalize turns p into an absolute, OS-normalized, case-preserving
// path. It is idempotent: Canonicalize(Canonicalize(p)) == Canonicalize(p).
func Canonicalize(p string) string {
	if p == "" {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = p
	}
	clean := filepath.Clean(abs)
	if runtime.GOOS == "windows" {
		clean = strings.ReplaceAll(clean, "/", "\\")
	} else {
		clean = strings.ReplaceAll(clean, "\\", "/")
	}
	return clean
}

// Basename returns the final path element of an already-canonical path.
func Basename(p string) string {
	return filepath.Base(p)
}

// Dir returns the parent directory of an already-canonical path.
func Dir(p string) string {
	return filepath.Dir(p)
}

// SplitExt splits a basename into its stem and extension (extension
// includes the leading dot, or is empty if there is none).
func SplitExt(basename string) (stem, ext string) {
	ext = filepath.Ext(basename)
	stem = strings.TrimSuffix(basename, ext)
	return stem, ext
}
