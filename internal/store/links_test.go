package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/cascade/internal/ir"
)

func TestInsertLink_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	l, inserted, err := s.InsertLink(ctx, createTestLink("i1", "f1"))
	if err != nil {
		t.Fatalf("InsertLink() failed: %v", err)
	}
	if !inserted {
		t.Error("first InsertLink() inserted = false")
	}
	if l.ID != ir.LinkID(createTestLink("i1", "f1")) {
		t.Errorf("ID = %q, want content-addressed id", l.ID)
	}

	_, inserted, err = s.InsertLink(ctx, createTestLink("i1", "f1"))
	if err != nil {
		t.Fatalf("second InsertLink() failed: %v", err)
	}
	if inserted {
		t.Error("duplicate InsertLink() inserted = true")
	}
}

func TestInsertLink_RequiresEndpoints(t *testing.T) {
	s := createTestStore(t)

	_, _, err := s.InsertLink(context.Background(), ir.Link{ModelX: "Invoice", RecordX: "i1"})
	if err == nil {
		t.Error("InsertLink() without Y endpoint succeeded, want error")
	}
}

func TestQueryLinks_BySide(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, f := range []string{"f2", "f1", "f3"} {
		if _, _, err := s.InsertLink(ctx, createTestLink("i1", f)); err != nil {
			t.Fatalf("InsertLink() failed: %v", err)
		}
	}
	if _, _, err := s.InsertLink(ctx, createTestLink("i2", "f4")); err != nil {
		t.Fatalf("InsertLink() failed: %v", err)
	}

	fromInvoice, err := s.QueryLinks(ctx, ir.LinkQuery{
		Side: ir.SideX, ModelID: "Invoice", RecordID: "i1", FieldX: "flights",
	})
	if err != nil {
		t.Fatalf("QueryLinks(X) failed: %v", err)
	}
	var got []string
	for _, l := range fromInvoice {
		got = append(got, l.RecordY)
	}
	if !equalIDs(got, []string{"f2", "f1", "f3"}) {
		t.Errorf("linked flights = %v, want insertion order [f2 f1 f3]", got)
	}

	fromFlight, err := s.QueryLinks(ctx, ir.LinkQuery{
		Side: ir.SideY, ModelID: "Flight", RecordID: "f4", FieldY: "invoice", OtherModel: "Invoice",
	})
	if err != nil {
		t.Fatalf("QueryLinks(Y) failed: %v", err)
	}
	if len(fromFlight) != 1 || fromFlight[0].RecordX != "i2" {
		t.Errorf("QueryLinks(Y) = %+v, want the i2 link", fromFlight)
	}

	none, err := s.QueryLinks(ctx, ir.LinkQuery{
		Side: ir.SideX, ModelID: "Invoice", RecordID: "i1", OtherModel: "Customer",
	})
	if err != nil {
		t.Fatalf("QueryLinks(other model) failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("QueryLinks(other model) = %d rows, want 0", len(none))
	}
}

func TestDeleteLink(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	l, _, err := s.InsertLink(ctx, createTestLink("i1", "f1"))
	if err != nil {
		t.Fatalf("InsertLink() failed: %v", err)
	}

	removed, err := s.DeleteLink(ctx, l.ID)
	if err != nil {
		t.Fatalf("DeleteLink() failed: %v", err)
	}
	if removed.RecordY != "f1" {
		t.Errorf("removed = %+v, want the f1 link", removed)
	}

	if _, err := s.DeleteLink(ctx, l.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteLink() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteLinksForRecord_BothSides(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, l := range []ir.Link{
		createTestLink("i1", "f1"),
		createTestLink("i1", "f2"),
		createTestLink("i2", "f3"),
	} {
		if _, _, err := s.InsertLink(ctx, l); err != nil {
			t.Fatalf("InsertLink() failed: %v", err)
		}
	}

	removed, err := s.DeleteLinksForRecord(ctx, "Flight", "f2")
	if err != nil {
		t.Fatalf("DeleteLinksForRecord() failed: %v", err)
	}
	if len(removed) != 1 || removed[0].RecordX != "i1" {
		t.Errorf("removed = %+v, want the i1-f2 link", removed)
	}

	removed, err = s.DeleteLinksForRecord(ctx, "Invoice", "i1")
	if err != nil {
		t.Fatalf("DeleteLinksForRecord() failed: %v", err)
	}
	if len(removed) != 1 {
		t.Errorf("removed %d links, want 1", len(removed))
	}

	left, err := s.QueryLinks(ctx, ir.LinkQuery{Side: ir.SideX, ModelID: "Invoice", RecordID: "i2"})
	if err != nil {
		t.Fatalf("QueryLinks() failed: %v", err)
	}
	if len(left) != 1 {
		t.Errorf("i2 links = %d, want 1", len(left))
	}
}
