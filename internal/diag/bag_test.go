package diag

import (
	"testing"

	"owninfer/internal/source"
)

func TestBagLimitAndMerge(t *testing.T) {
	b := NewBag(1)
	if !b.Add(NewError(OwnTraitMismatch, source.Span{Start: 1, End: 2}, "x")) {
		t.Fatalf("first add must succeed")
	}
	if b.Add(NewError(OwnTraitMismatch, source.Span{Start: 3, End: 4}, "y")) {
		t.Fatalf("add past the limit must fail")
	}

	other := NewBag(4)
	other.Add(New(SevWarning, OwnEscapingCaptureReuse, source.Span{Start: 0, End: 1}, "w"))
	other.Add(New(SevInfo, OwnMovedInLoop, source.Span{Start: 5, End: 6}, "i"))
	b.Merge(other)
	if b.Len() != 3 {
		t.Fatalf("Len = %d after merge", b.Len())
	}
	if !b.HasErrors() || !b.HasWarnings() {
		t.Fatalf("severity queries wrong")
	}
	if b.Count(SevInfo) != 1 {
		t.Fatalf("Count(info) = %d", b.Count(SevInfo))
	}
}

func TestBagSortAndDedup(t *testing.T) {
	b := NewBag(10)
	sp := source.Span{Start: 4, End: 8}
	b.Add(New(SevWarning, OwnEscapingCaptureReuse, sp, "w"))
	b.Add(NewError(OwnPartialMoveReuse, sp, "e"))
	b.Add(NewError(OwnPartialMoveReuse, sp, "e again"))
	b.Add(NewError(OwnTraitArity, source.Span{Start: 0, End: 1}, "first"))
	b.Sort()
	b.Dedup()

	want := []Code{OwnTraitArity, OwnPartialMoveReuse, OwnEscapingCaptureReuse}
	if b.Len() != len(want) {
		t.Fatalf("Len = %d, want %d", b.Len(), len(want))
	}
	for i, d := range b.Items() {
		if d.Code != want[i] {
			t.Fatalf("item %d code %s, want %s", i, d.Code.ID(), want[i].ID())
		}
	}
}

func TestReportBuilderEmitsOnce(t *testing.T) {
	bag := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: bag})
	rb := ReportError(r, OwnTraitMismatch, source.Span{Start: 1, End: 3}, "param moved").
		WithNote(source.Span{Start: 0, End: 1}, "declared here")
	rb.Emit()
	rb.Emit()
	ReportError(r, OwnTraitMismatch, source.Span{Start: 1, End: 3}, "param moved").Emit()
	if bag.Len() != 1 {
		t.Fatalf("expected a single diagnostic, got %d", bag.Len())
	}
	if len(bag.Items()[0].Notes) != 1 {
		t.Fatalf("note lost")
	}
}
