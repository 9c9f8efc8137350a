package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"owninfer/internal/ast"
	"owninfer/internal/version"
)

// loadUnit reads an encoded unit and rejects schemas this build cannot read.
func loadUnit(path string) (*ast.Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	u, err := ast.DecodeUnit(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := version.CheckUnitSchema(u.Schema); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

// writeUnit encodes u to path through a temporary file in the same
// directory, so a failed write never truncates an existing unit.
func writeUnit(path string, u *ast.Unit) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".owninfer-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	w := bufio.NewWriter(tmp)
	if err := u.Encode(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
