package cache

import "testing"

func TestPendingChangesOrderAndResolve(t *testing.T) {
	p := NewPendingChanges()
	id1 := p.Track(ChangeCreate, "1,2:1")
	id2 := p.Track(ChangeMove, "1,2:2")
	id3 := p.Track(ChangeDelete, "1,2:3")

	if id1 == id2 || id2 == id3 {
		t.Fatal("change ids must be unique")
	}

	list := p.List()
	if len(list) != 3 {
		t.Fatalf("Len = %d, want 3", len(list))
	}
	if list[0].Kind != ChangeCreate || list[1].Kind != ChangeMove || list[2].Kind != ChangeDelete {
		t.Fatalf("submission order lost: %+v", list)
	}

	p.Resolve(id2)
	list = p.List()
	if len(list) != 2 || list[0].ID != id1 || list[1].ID != id3 {
		t.Fatalf("Resolve broke ordering: %+v", list)
	}

	// Resolving an unknown id is a no-op.
	p.Resolve("missing")
	if p.Len() != 2 {
		t.Fatal("Resolve of unknown id changed the tracker")
	}

	p.Reset()
	if p.Len() != 0 {
		t.Fatal("Reset must clear the tracker")
	}
}

func TestPendingChangesIndependentSessions(t *testing.T) {
	p1 := NewPendingChanges()
	p2 := NewPendingChanges()
	p1.Track(ChangeUpdate, "1,2:1")
	if p2.Len() != 0 {
		t.Fatal("trackers must not share state across sessions")
	}
}
