package identity

import "testing"

func TestAssignUniqueNames(t *testing.T) {
	assigner := NewAssigner()

	seen := make(map[string]bool)
	for i := 0; i < assigner.PoolSize(); i++ {
		name := assigner.Assign()
		if seen[name] {
			t.Fatalf("Name %q assigned twice", name)
		}
		seen[name] = true
	}
}

func TestAssignFallbackOnExhaustion(t *testing.T) {
	assigner := NewAssigner()

	for i := 0; i < assigner.PoolSize(); i++ {
		assigner.Assign()
	}

	first := assigner.Assign()
	second := assigner.Assign()

	if first == "" || second == "" {
		t.Fatal("Exhausted pool must still assign a name")
	}
	if first == second {
		t.Errorf("Fallback names must be unique, got %q twice", first)
	}
}

func TestReleaseReturnsNameToPool(t *testing.T) {
	assigner := NewAssigner()

	taken := make([]string, 0, assigner.PoolSize())
	for i := 0; i < assigner.PoolSize(); i++ {
		taken = append(taken, assigner.Assign())
	}

	assigner.Release(taken[0])

	name := assigner.Assign()
	if name != taken[0] {
		t.Errorf("Expected released name %q to be reused, got %q", taken[0], name)
	}
}
