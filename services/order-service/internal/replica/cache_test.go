package replica

import "testing"

func TestUpsertIfAbsentIsIdempotent(t *testing.T) {
	c := NewCache()
	u := User{ID: 1, Name: "Alice Dupont", Email: "alice@mail.com"}

	if !c.UpsertIfAbsent(u) {
		t.Fatal("first apply should insert")
	}
	if c.UpsertIfAbsent(u) {
		t.Fatal("second apply should be a no-op")
	}

	got, ok := c.Get(1)
	if !ok || got != u {
		t.Fatalf("expected %+v, got %+v (ok=%v)", u, got, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}
	if c.Applied() != 1 || c.Duplicates() != 1 {
		t.Fatalf("expected applied=1 duplicates=1, got %d/%d", c.Applied(), c.Duplicates())
	}
}

func TestFirstWriterWins(t *testing.T) {
	c := NewCache()
	c.UpsertIfAbsent(User{ID: 1, Name: "Alice Dupont", Email: "alice@mail.com"})
	c.UpsertIfAbsent(User{ID: 1, Name: "Imposter", Email: "evil@mail.com"})

	got, _ := c.Get(1)
	if got.Name != "Alice Dupont" {
		t.Fatalf("existing entry was overwritten: %+v", got)
	}
}

func TestApplyOrderAcrossKeysDoesNotMatter(t *testing.T) {
	a := User{ID: 1, Name: "Alice Dupont", Email: "alice@mail.com"}
	b := User{ID: 2, Name: "Bob Martin", Email: "bob@mail.com"}

	forward := NewCache()
	forward.UpsertIfAbsent(a)
	forward.UpsertIfAbsent(b)

	reverse := NewCache()
	reverse.UpsertIfAbsent(b)
	reverse.UpsertIfAbsent(a)

	for _, id := range []int64{1, 2} {
		fu, fok := forward.Get(id)
		ru, rok := reverse.Get(id)
		if fok != rok || fu != ru {
			t.Fatalf("caches diverged for id %d: %+v vs %+v", id, fu, ru)
		}
	}
}

func TestGetMissing(t *testing.T) {
	c := NewCache()
	if _, ok := c.Get(42); ok {
		t.Fatal("expected miss for unknown id")
	}
}
