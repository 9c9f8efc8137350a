package diagfmt

import (
	"path/filepath"

	"owninfer/internal/source"
)

func formatPath(f *source.File, mode PathMode, base string) string {
	if f == nil {
		return "<unknown>"
	}
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(f.Path); err == nil {
			return filepath.ToSlash(abs)
		}
	case PathModeRelative:
		if base != "" {
			if rel, err := filepath.Rel(base, f.Path); err == nil {
				return filepath.ToSlash(rel)
			}
		}
	case PathModeBasename:
		return filepath.Base(f.Path)
	}
	return f.Path
}
