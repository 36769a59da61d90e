package terminal

import (
	"regexp"
	"testing"
	"time"
)

var catParams = SpawnParams{Command: "/bin/cat", Cols: 80, Rows: 24}

func TestRegistryFreshIDs(t *testing.T) {
	r := NewRegistry("", 0)
	defer r.CloseAll()

	a, created, err := r.ResolveOrCreate("", catParams)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if !created {
		t.Fatal("expected a fresh session")
	}
	b, created, err := r.ResolveOrCreate("", catParams)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if !created {
		t.Fatal("expected a second fresh session")
	}

	if a.ID() == b.ID() {
		t.Fatalf("two fresh sessions share id %q", a.ID())
	}
	idPattern := regexp.MustCompile(`^[0-9a-f]{8,}$`)
	for _, s := range []*Session{a, b} {
		if !idPattern.MatchString(s.ID()) {
			t.Fatalf("session id %q is not lowercase hex", s.ID())
		}
	}
}

func TestRegistryResolveExistingIgnoresParams(t *testing.T) {
	r := NewRegistry("", 0)
	defer r.CloseAll()

	a, _, err := r.ResolveOrCreate("", catParams)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	other := SpawnParams{Command: "/bin/sleep", Argv: []string{"60"}, Cols: 10, Rows: 10}
	b, created, err := r.ResolveOrCreate(a.ID(), other)
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}
	if created {
		t.Fatal("resolving an existing id must not create")
	}
	if b != a {
		t.Fatal("expected the same session")
	}
	if b.Command() != "/bin/cat" {
		t.Fatalf("command changed on attach: %q", b.Command())
	}
}

func TestRegistryBogusRequestedID(t *testing.T) {
	r := NewRegistry("", 0)
	defer r.CloseAll()

	s, created, err := r.ResolveOrCreate("../../etc/passwd", catParams)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if !created {
		t.Fatal("expected a fresh session")
	}
	if s.ID() == "../../etc/passwd" {
		t.Fatal("registry accepted a non-hex id")
	}
}

func TestRegistryListOrder(t *testing.T) {
	r := NewRegistry("", 0)
	defer r.CloseAll()

	first, _, err := r.ResolveOrCreate("", catParams)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	second, _, err := r.ResolveOrCreate("", catParams)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	infos := r.List()
	if len(infos) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(infos))
	}
	if infos[0].ID != first.ID() || infos[1].ID != second.ID() {
		t.Fatalf("list not ordered by creation time: %v", infos)
	}
	if !infos[0].Alive {
		t.Fatal("running session reported dead")
	}
}

func TestRegistryEvictsDrainedSessions(t *testing.T) {
	r := NewRegistry("", 0)

	s, _, err := r.ResolveOrCreate("", SpawnParams{Command: "/bin/true", Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	id := s.ID()

	// No clients ever attach; once the child exits the session drains and
	// the registry forgets it.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r.Get(id) == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("drained session %s still in registry", id)
}
