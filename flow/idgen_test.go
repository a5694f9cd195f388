package flow

import "testing"

func TestIDGeneratorProducesUniqueIDs(t *testing.T) {
	g, err := newIDGenerator()
	if err != nil {
		t.Fatalf("newIDGenerator: %v", err)
	}

	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		id, err := g.next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if id == "" {
			t.Fatalf("next returned an empty id")
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id generated: %q", id)
		}
		seen[id] = struct{}{}
	}
}
