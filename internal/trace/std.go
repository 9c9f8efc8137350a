package trace

import (
	"io"
	"os"
)

func isStdStream(w io.Writer) bool {
	return w == os.Stderr || w == os.Stdout
}
