package source

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"fortio.org/safecast"
)

// FileSet keeps the source text a unit was parsed from. Analysis never needs
// it; diagnostics rendering does.
type FileSet struct {
	files []File
	index map[string]FileID
}

func NewFileSet() *FileSet {
	return &FileSet{
		files: make([]File, 0),
		index: make(map[string]FileID),
	}
}

// Add stores content under path and returns a fresh FileID.
func (fs *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	content, hadBOM := removeBOM(content)
	content, hadCRLF := normalizeCRLF(content)
	if hadBOM {
		flags |= FileHadBOM
	}
	if hadCRLF {
		flags |= FileNormalizedCRLF
	}
	n, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("file count overflow: %w", err))
	}
	id := FileID(n)
	clean := filepath.ToSlash(filepath.Clean(path))
	fs.files = append(fs.files, File{
		ID:      id,
		Path:    clean,
		Content: content,
		LineIdx: buildLineIndex(content),
		Flags:   flags,
	})
	fs.index[clean] = id
	return id
}

// Load reads a file from disk.
func (fs *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return fs.Add(path, content, 0), nil
}

// Get returns nil for unknown ids.
func (fs *FileSet) Get(id FileID) *File {
	if fs == nil || int(id) >= len(fs.files) {
		return nil
	}
	return &fs.files[id]
}

func (fs *FileSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.files)
}

// Resolve converts a span into line and column positions.
// ok is false when the span points at a file this set does not hold.
func (fs *FileSet) Resolve(span Span) (start, end LineCol, ok bool) {
	f := fs.Get(span.File)
	if f == nil {
		return LineCol{}, LineCol{}, false
	}
	return toLineCol(f.LineIdx, span.Start), toLineCol(f.LineIdx, span.End), true
}

// Line returns the text of a 1-based line without its terminator.
func (f *File) Line(n uint32) string {
	if n == 0 {
		return ""
	}
	size, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(fmt.Errorf("content length overflow: %w", err))
	}
	var start uint32
	if n > 1 {
		if int(n-2) >= len(f.LineIdx) {
			return ""
		}
		start = f.LineIdx[n-2] + 1
	}
	end := size
	if int(n-1) < len(f.LineIdx) {
		end = f.LineIdx[n-1]
	}
	if start >= size {
		return ""
	}
	return string(f.Content[start:min(end, size)])
}

func normalizeCRLF(content []byte) ([]byte, bool) {
	if !slices.Contains(content, '\r') {
		return content, false
	}
	out := make([]byte, 0, len(content))
	changed := false
	for i := 0; i < len(content); i++ {
		if content[i] == '\r' && i+1 < len(content) && content[i+1] == '\n' {
			changed = true
			continue
		}
		out = append(out, content[i])
	}
	return out, changed
}

func removeBOM(content []byte) ([]byte, bool) {
	if len(content) >= 3 && content[0] == 0xEF && content[1] == 0xBB && content[2] == 0xBF {
		return content[3:], true
	}
	return content, false
}

func buildLineIndex(content []byte) []uint32 {
	out := make([]uint32, 0, 64)
	for i, b := range content {
		if b == '\n' {
			out = append(out, uint32(i)) // #nosec G115 -- bounded by Add
		}
	}
	return out
}

// toLineCol finds the line containing off by binary search over newline offsets.
func toLineCol(lineIdx []uint32, off uint32) LineCol {
	line, _ := slices.BinarySearch(lineIdx, off)
	var start uint32
	if line > 0 {
		start = lineIdx[line-1] + 1
	}
	l, err := safecast.Conv[uint32](line + 1)
	if err != nil {
		panic(fmt.Errorf("line overflow: %w", err))
	}
	return LineCol{Line: l, Col: off - start + 1}
}
