package sid

import "testing"

func TestGenerateIsUnique(t *testing.T) {
	g := New()
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id, err := g.Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate sid generated: %s", id)
		}
		seen[id] = true
	}
}
