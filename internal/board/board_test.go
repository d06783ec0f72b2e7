package board

import "testing"

func TestRenderUpdatesRow(t *testing.T) {
	b := New()
	b.Render("alice", "first")
	b.Render("alice", "second")

	rows := b.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].LastContent != "second" {
		t.Fatalf("expected latest content, got %q", rows[0].LastContent)
	}
	if rows[0].Deliveries != 2 {
		t.Fatalf("expected 2 deliveries, got %d", rows[0].Deliveries)
	}
	if rows[0].LastAt == nil {
		t.Fatalf("expected last delivery timestamp")
	}
}

func TestTrackShowsRowBeforeDelivery(t *testing.T) {
	b := New()
	b.Track("bob")
	rows := b.Rows()
	if len(rows) != 1 || rows[0].Name != "bob" {
		t.Fatalf("tracked row missing: %v", rows)
	}
	if rows[0].Deliveries != 0 || rows[0].LastAt != nil {
		t.Fatalf("tracked row should have no deliveries: %+v", rows[0])
	}
}

func TestRowsKeepFirstSeenOrder(t *testing.T) {
	b := New()
	b.Track("c")
	b.Track("a")
	b.Render("b", "x")
	b.Render("a", "y")

	rows := b.Rows()
	want := []string{"c", "a", "b"}
	for i, name := range want {
		if rows[i].Name != name {
			t.Fatalf("order %v, want %v", rows, want)
		}
	}
}

func TestForgetRemovesRow(t *testing.T) {
	b := New()
	b.Track("a")
	b.Track("b")
	b.Forget("a")
	b.Forget("missing")

	rows := b.Rows()
	if len(rows) != 1 || rows[0].Name != "b" {
		t.Fatalf("unexpected rows after forget: %v", rows)
	}
}

func TestColorsAreStable(t *testing.T) {
	b := New()
	b.Track("a")
	c := b.Color("a")
	b.Render("a", "x")
	if b.Color("a") != c {
		t.Fatalf("colour changed after delivery")
	}
}
