// Package identity hands out display names from a finite themed pool. Peers
// never pick their own name; the hub requests one on admission and returns it
// on disconnect.
package identity

import (
	"fmt"
	"math/rand"
	"sync"
)

var constellations = []string{
	"Andromeda", "Aquila", "Ara", "Aries", "Auriga", "Bootes", "Carina",
	"Cassiopeia", "Centaurus", "Cepheus", "Cetus", "Columba", "Corvus",
	"Crux", "Cygnus", "Delphinus", "Dorado", "Draco", "Eridanus", "Fornax",
	"Gemini", "Grus", "Hercules", "Hydra", "Lacerta", "Leo", "Lepus",
	"Libra", "Lynx", "Lyra", "Mensa", "Monoceros", "Musca", "Octans",
	"Orion", "Pavo", "Pegasus", "Perseus", "Phoenix", "Pictor", "Pyxis",
	"Sagitta", "Scorpius", "Serpens", "Sextans", "Taurus", "Tucana",
	"Vela", "Virgo", "Vulpecula",
}

// Assigner draws unused names from the pool. When every name is taken it falls
// back to numbered generic names instead of refusing the peer.
type Assigner struct {
	mu       sync.Mutex
	pool     []string
	inUse    map[string]bool
	fallback int
}

func NewAssigner() *Assigner {
	return &Assigner{
		pool:  constellations,
		inUse: make(map[string]bool),
	}
}

func (a *Assigner) Assign() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	free := make([]string, 0, len(a.pool))
	for _, name := range a.pool {
		if !a.inUse[name] {
			free = append(free, name)
		}
	}

	if len(free) == 0 {
		a.fallback++
		name := fmt.Sprintf("Wanderer %d", a.fallback)
		a.inUse[name] = true
		return name
	}

	name := free[rand.Intn(len(free))]
	a.inUse[name] = true
	return name
}

func (a *Assigner) Release(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inUse, name)
}

// PoolSize reports how many themed names exist in total.
func (a *Assigner) PoolSize() int {
	return len(a.pool)
}
