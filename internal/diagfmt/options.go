package diagfmt

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAsIs prints the path stored in the unit.
	PathModeAsIs PathMode = iota
	PathModeAbsolute
	// PathModeRelative prints paths relative to BaseDir.
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color     bool
	Context   uint8 // lines of context above the primary line
	PathMode  PathMode
	BaseDir   string
	ShowNotes bool
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	IncludePositions bool
	PathMode         PathMode
	BaseDir          string
	Max              int // truncates output, not the bag
	IncludeNotes     bool
}
