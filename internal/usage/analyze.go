package usage

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"owninfer/internal/ast"
	"owninfer/internal/config"
	"owninfer/internal/source"
	"owninfer/internal/symbols"
)

type useKind uint8

const (
	useRead useKind = iota
	useMove
	useMutate
	useAssign
)

// use is the context an expression is evaluated in.
type use struct {
	kind      useKind
	reason    MoveReason
	ambiguous bool
	// selfCall marks the receiver of a mutating method call.
	selfCall bool
}

var readUse = use{kind: useRead}

func moveUse(r MoveReason) use { return use{kind: useMove, reason: r} }

type analyzer struct {
	ctx    *symbols.Context
	b      *ast.Builder
	pol    *config.Policy
	res    *Result
	owner  source.StringID
	scopes []map[source.StringID]BindingID

	branch   []Arm
	loops    []LoopID
	closures []ClosureID
	ordinal  int
	// depth is the closure nesting of each binding at declaration.
	depth []int
	// lastClosure is the most recently finished closure expression.
	lastClosure ClosureID
}

// Analyze walks the body of fn once and classifies every use of every
// binding. Callee parameter ownership is read from ctx.Sigs; ctx is never
// written.
func Analyze(ctx *symbols.Context, fn ast.ItemID) (*Result, error) {
	if ctx == nil || ctx.Unit == nil || ctx.Table == nil {
		return nil, fmt.Errorf("usage: incomplete context")
	}
	items := ctx.Unit.AST.Items
	decl, ok := items.Fn(fn)
	if !ok {
		return nil, fmt.Errorf("usage: item %d is not a function", fn)
	}
	info, ok := ctx.Table.Info(fn)
	if !ok {
		info = symbols.FnInfo{Item: fn, Name: decl.Name, Owner: decl.Owner, Trait: decl.Trait}
	}
	pol := ctx.Policy
	if pol == nil {
		def := config.Default()
		pol = &def.Policy
	}
	a := &analyzer{
		ctx:   ctx,
		b:     ctx.Unit.AST,
		pol:   pol,
		owner: info.Owner,
		res:   &Result{Fn: fn, Info: info},
	}

	a.push()
	for i, pid := range decl.Params {
		p := items.Param(pid)
		if p == nil {
			continue
		}
		kind := BindParam
		if p.Self {
			kind = BindSelf
		}
		id := a.declare(p.Name, kind, p.Span)
		bind := a.res.Binding(id)
		bind.Param = i
		bind.Type = p.Type
		bind.Mut = p.Mut
		if p.Self {
			bind.TypeName = info.Owner
		} else {
			bind.Copy = ctx.Table.IsCopyType(a.b.Types, p.Type, info.Owner)
		}
		a.res.Params = append(a.res.Params, id)
	}
	a.expr(decl.Body, moveUse(MoveReturn))
	a.pop()
	a.finish()
	return a.res, nil
}

func nextID[T ~uint32](n int) T {
	v, err := safecast.Conv[uint32](n + 1)
	if err != nil {
		panic(fmt.Errorf("usage: id space exhausted: %w", err))
	}
	return T(v)
}

func (a *analyzer) push() {
	a.scopes = append(a.scopes, make(map[source.StringID]BindingID))
}

func (a *analyzer) pop() {
	a.scopes = a.scopes[:len(a.scopes)-1]
}

func (a *analyzer) lookup(name source.StringID) BindingID {
	for i := len(a.scopes) - 1; i >= 0; i-- {
		if id, ok := a.scopes[i][name]; ok {
			return id
		}
	}
	return NoBindingID
}

func (a *analyzer) closure() ClosureID {
	if n := len(a.closures); n > 0 {
		return a.closures[n-1]
	}
	return 0
}

func (a *analyzer) declare(name source.StringID, kind BindingKind, span source.Span) BindingID {
	id := nextID[BindingID](len(a.res.Bindings))
	a.res.Bindings = append(a.res.Bindings, Binding{
		ID:      id,
		Name:    name,
		Kind:    kind,
		Param:   -1,
		Span:    span,
		Loops:   slices.Clone(a.loops),
		Closure: a.closure(),
	})
	a.res.Facts = append(a.res.Facts, Fact{})
	a.depth = append(a.depth, len(a.closures))
	a.scopes[len(a.scopes)-1][name] = id
	return id
}

func (a *analyzer) inArm(node ast.ExprID, arm int, fn func()) {
	a.branch = append(a.branch, Arm{Node: node, Arm: arm})
	fn()
	a.branch = a.branch[:len(a.branch)-1]
}

func (a *analyzer) inLoop(span source.Span, closure bool, fn func()) LoopID {
	id := nextID[LoopID](len(a.res.Loops))
	a.res.Loops = append(a.res.Loops, Loop{ID: id, Closure: closure, Span: span, Start: a.ordinal + 1})
	a.loops = append(a.loops, id)
	fn()
	a.loops = a.loops[:len(a.loops)-1]
	a.res.Loop(id).End = a.ordinal
	return id
}

// record appends one occurrence and folds it into the binding's fact.
func (a *analyzer) record(id BindingID, u use, expr ast.ExprID, path Path, span source.Span) *Occurrence {
	kind := OccRead
	switch u.kind {
	case useMove:
		kind = OccMove
	case useMutate:
		kind = OccMutate
	case useAssign:
		kind = OccAssign
	}
	return a.recordKind(id, kind, u, expr, path, span)
}

func (a *analyzer) recordKind(id BindingID, kind OccKind, u use, expr ast.ExprID, path Path, span source.Span) *Occurrence {
	a.ordinal++
	occ := Occurrence{
		Ordinal: a.ordinal,
		Binding: id,
		Kind:    kind,
		Reason:  u.reason,
		Expr:    expr,
		Path:    path,
		Span:    span,
		Branch:  slices.Clone(a.branch),
		Loops:   slices.Clone(a.loops),
		Closure: a.closure(),
	}
	if kind == OccMove {
		occ.Copy = a.pathCopy(id, path)
	}
	a.res.Occurrences = append(a.res.Occurrences, occ)

	f := a.res.Fact(id)
	bind := a.res.Binding(id)
	switch kind {
	case OccRead, OccDestructure:
		f.ReadCount++
	case OccMove:
		switch u.reason {
		case MoveStore:
			f.Stored = true
		case MoveReturn:
			f.Returned = true
		default:
			f.MovedIntoOwned = true
		}
	case OccMutate:
		f.Mutated = true
		if len(path) > 0 {
			f.FieldMutated = true
		} else if u.selfCall && bind.Kind == BindSelf {
			f.SelfCallMutated = true
		}
	case OccAssign:
		f.Mutated = true
		if len(path) > 0 {
			f.FieldMutated = true
		} else {
			f.Reassigned = true
		}
	}
	if u.ambiguous {
		f.Ambiguous = true
	}
	for _, cid := range a.closures[a.depth[id-1]:] {
		c := a.res.Closure(cid)
		if !slices.Contains(c.Captures, id) {
			c.Captures = append(c.Captures, id)
		}
	}
	return &a.res.Occurrences[len(a.res.Occurrences)-1]
}

// peekPlace resolves an identifier, field, index or deref chain to its
// root binding without recording anything.
func (a *analyzer) peekPlace(id ast.ExprID) (BindingID, Path, bool) {
	ex := a.b.Exprs
	e := ex.Get(id)
	if e == nil {
		return NoBindingID, nil, false
	}
	switch e.Kind {
	case ast.ExprIdent:
		d, _ := ex.Ident(id)
		b := a.lookup(d.Name)
		return b, nil, b != NoBindingID
	case ast.ExprField:
		d, _ := ex.Field(id)
		root, path, ok := a.peekPlace(d.Target)
		return root, append(path, PathElem{Name: d.Field}), ok
	case ast.ExprIndex:
		d, _ := ex.Index(id)
		root, path, ok := a.peekPlace(d.Target)
		return root, append(path, PathElem{Index: true}), ok
	case ast.ExprUnary:
		d, _ := ex.Unary(id)
		if d.Op != ast.UnDeref {
			return NoBindingID, nil, false
		}
		root, path, ok := a.peekPlace(d.Operand)
		return root, append(path, PathElem{Deref: true}), ok
	}
	return NoBindingID, nil, false
}

// walkPlace is peekPlace that also analyses index operands and any
// non-place base of the chain.
func (a *analyzer) walkPlace(id ast.ExprID) (BindingID, Path, bool) {
	ex := a.b.Exprs
	e := ex.Get(id)
	if e == nil {
		return NoBindingID, nil, false
	}
	switch e.Kind {
	case ast.ExprIdent:
		d, _ := ex.Ident(id)
		b := a.lookup(d.Name)
		return b, nil, b != NoBindingID
	case ast.ExprField:
		d, _ := ex.Field(id)
		root, path, ok := a.walkPlace(d.Target)
		if !ok {
			return NoBindingID, nil, false
		}
		return root, append(path, PathElem{Name: d.Field}), true
	case ast.ExprIndex:
		d, _ := ex.Index(id)
		root, path, ok := a.walkPlace(d.Target)
		a.expr(d.Index, readUse)
		if !ok {
			return NoBindingID, nil, false
		}
		return root, append(path, PathElem{Index: true}), true
	case ast.ExprUnary:
		d, _ := ex.Unary(id)
		if d.Op == ast.UnDeref {
			root, path, ok := a.walkPlace(d.Operand)
			if !ok {
				return NoBindingID, nil, false
			}
			return root, append(path, PathElem{Deref: true}), true
		}
	}
	a.expr(id, readUse)
	return NoBindingID, nil, false
}

func (a *analyzer) place(id ast.ExprID, u use) {
	root, path, ok := a.walkPlace(id)
	if !ok {
		return
	}
	a.record(root, u, id, path, a.b.Exprs.Get(id).Span)
}

func (a *analyzer) expr(id ast.ExprID, u use) {
	if id == ast.NoExprID {
		return
	}
	ex := a.b.Exprs
	e := ex.Get(id)
	if e == nil {
		return
	}
	switch e.Kind {
	case ast.ExprIdent, ast.ExprField, ast.ExprIndex:
		a.place(id, u)
	case ast.ExprLit:
	case ast.ExprBinary:
		d, _ := ex.Binary(id)
		operand := readUse
		operand.ambiguous = d.Op.IsArithmetic()
		a.expr(d.Left, operand)
		a.expr(d.Right, operand)
	case ast.ExprUnary:
		d, _ := ex.Unary(id)
		switch d.Op {
		case ast.UnDeref:
			a.place(id, u)
		case ast.UnRefMut:
			a.expr(d.Operand, use{kind: useMutate})
		default:
			a.expr(d.Operand, readUse)
		}
	case ast.ExprCall:
		a.call(id)
	case ast.ExprMethodCall:
		a.methodCall(id, u)
	case ast.ExprBlock:
		a.block(id, u)
	case ast.ExprIf:
		d, _ := ex.If(id)
		a.expr(d.Cond, readUse)
		a.inArm(id, 0, func() { a.expr(d.Then, u) })
		if d.Else != ast.NoExprID {
			a.inArm(id, 1, func() { a.expr(d.Else, u) })
		}
	case ast.ExprMatch:
		a.match(id, u)
	case ast.ExprClosure:
		a.closureExpr(id, u)
	case ast.ExprStruct:
		d, _ := ex.Struct(id)
		for _, f := range d.Fields {
			a.expr(f.Value, moveUse(MoveStore))
		}
	case ast.ExprArray, ast.ExprTuple:
		d, _ := ex.List(id)
		for _, el := range d.Elems {
			a.expr(el, moveUse(MoveStore))
		}
	case ast.ExprMap:
		d, _ := ex.Map(id)
		for _, en := range d.Entries {
			a.expr(en.Key, moveUse(MoveStore))
			a.expr(en.Value, moveUse(MoveStore))
		}
	case ast.ExprMacro:
		d, _ := ex.Macro(id)
		arg := readUse
		if a.pol.IsCollectionMacro(a.ctx.Unit.Name(d.Name)) {
			arg = moveUse(MoveStore)
		}
		for _, e := range d.Args {
			a.expr(e, arg)
		}
	case ast.ExprCast:
		d, _ := ex.Cast(id)
		a.expr(d.Value, readUse)
	case ast.ExprRange:
		d, _ := ex.Range(id)
		a.expr(d.Start, readUse)
		a.expr(d.End, readUse)
	case ast.ExprTry, ast.ExprAwait:
		inner, _ := ex.Wrapped(id)
		a.expr(inner, u)
	case ast.ExprDup:
		inner, _ := ex.Wrapped(id)
		a.expr(inner, readUse)
	}
}

func (a *analyzer) block(id ast.ExprID, u use) {
	d, _ := a.b.Exprs.Block(id)
	a.push()
	start := len(a.res.Occurrences)
	for _, sid := range d.Stmts {
		a.stmt(sid, start)
	}
	a.expr(d.Tail, u)
	a.pop()
}

func (a *analyzer) match(id ast.ExprID, u use) {
	d, _ := a.b.Exprs.Match(id)
	src := a.destructure(d.Scrutinee)
	for i, arm := range d.Arms {
		a.inArm(id, i, func() {
			a.push()
			a.bindPattern(arm.Pattern, BindPattern, src, nil)
			a.expr(arm.Guard, readUse)
			a.expr(arm.Body, u)
			a.pop()
		})
	}
}

// destructure analyses the value taken apart by a pattern. A place value
// records a single destructure occurrence that later partial moves are
// attributed to.
func (a *analyzer) destructure(id ast.ExprID) *Source {
	if root, path, ok := a.walkPlace(id); ok {
		span := a.b.Exprs.Get(id).Span
		occ := a.recordKind(root, OccDestructure, readUse, id, path, span)
		return &Source{Root: root, Path: path, Ordinal: occ.Ordinal, Span: span}
	}
	return nil
}

func (a *analyzer) closureExpr(id ast.ExprID, u use) {
	d, _ := a.b.Exprs.Closure(id)
	cid := nextID[ClosureID](len(a.res.Closures))
	a.res.Closures = append(a.res.Closures, Closure{
		ID:      cid,
		Expr:    id,
		Span:    a.b.Exprs.Get(id).Span,
		Move:    d.Move,
		Escapes: u.kind == useMove && (u.reason == MoveReturn || u.reason == MoveStore),
		Start:   a.ordinal + 1,
	})
	a.closures = append(a.closures, cid)
	lid := a.inLoop(a.b.Exprs.Get(id).Span, true, func() {
		a.push()
		for _, p := range d.Params {
			a.bindPattern(p, BindPattern, nil, nil)
		}
		a.expr(d.Body, moveUse(MoveClosureResult))
		a.pop()
	})
	a.closures = a.closures[:len(a.closures)-1]
	c := a.res.Closure(cid)
	c.End = a.ordinal
	c.Loop = lid
	a.lastClosure = cid
}

// finish resolves facts that depend on the whole body: closures escaping
// through the local they were bound to, owned captures and partial moves.
func (a *analyzer) finish() {
	for i := range a.res.Bindings {
		bind := &a.res.Bindings[i]
		if bind.ClosureOf == 0 {
			continue
		}
		if f := a.res.Fact(bind.ID); f.Returned || f.Stored {
			a.res.Closure(bind.ClosureOf).Escapes = true
		}
	}
	for i := range a.res.Closures {
		c := &a.res.Closures[i]
		if !c.Owning() {
			continue
		}
		for _, b := range c.Captures {
			a.res.Fact(b).CapturedByEscapingClosure = true
		}
	}
	for i := range a.res.Bindings {
		bind := &a.res.Bindings[i]
		if bind.From == nil || bind.Copy || bind.ByRef {
			continue
		}
		if a.res.Fact(bind.ID).Consumed() {
			a.res.Fact(bind.From.Root).PartiallyMoved = true
		}
	}
}
