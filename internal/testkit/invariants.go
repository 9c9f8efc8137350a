package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"owninfer/internal/ast"
	"owninfer/internal/source"
)

// CheckSpanInvariants runs a minimal set of span invariants on a unit:
// 1) every root item span is non-empty and within its file's content
// 2) every expression reachable from a function body resolves and its span
// lies within its file's content
func CheckSpanInvariants(u *ast.Unit) error {
	if u == nil || u.AST == nil {
		return fmt.Errorf("nil unit")
	}
	for _, id := range u.Roots {
		item := u.AST.Items.Get(id)
		if item == nil {
			return fmt.Errorf("nil item for id=%d", id)
		}
		if item.Span.End <= item.Span.Start {
			return fmt.Errorf("empty item span: %v", item.Span)
		}
		if err := inFile(u.Files, item.Span); err != nil {
			return fmt.Errorf("item %d: %w", id, err)
		}
		if fn, ok := u.AST.Items.Fn(id); ok {
			if err := CheckBody(u, fn.Body); err != nil {
				return fmt.Errorf("fn %q: %w", u.Name(fn.Name), err)
			}
		}
	}
	return nil
}

// CheckBody verifies every node reachable from body.
func CheckBody(u *ast.Unit, body ast.ExprID) error {
	var err error
	ast.Inspect(u.AST, body, func(id ast.ExprID, e *ast.Expr) bool {
		if err != nil {
			return false
		}
		if e.Span == source.NoSpan {
			return true
		}
		if e2 := inFile(u.Files, e.Span); e2 != nil {
			err = fmt.Errorf("expr %d (%s): %w", id, e.Kind, e2)
			return false
		}
		return true
	})
	return err
}

func inFile(fs *source.FileSet, sp source.Span) error {
	f := fs.Get(sp.File)
	if f == nil {
		return fmt.Errorf("span %v points to unknown file", sp)
	}
	lenContent, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}
	if sp.Start > sp.End || sp.End > lenContent {
		return fmt.Errorf("span %v beyond content of %d bytes", sp, lenContent)
	}
	return nil
}

// CountDups returns the number of dup nodes reachable from body.
func CountDups(b *ast.Builder, body ast.ExprID) int {
	n := 0
	ast.Inspect(b, body, func(_ ast.ExprID, e *ast.Expr) bool {
		if e.Kind == ast.ExprDup {
			n++
		}
		return true
	})
	return n
}
