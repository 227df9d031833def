package chain

import (
	"math/rand"
	"testing"
	"time"
)

// newTestRand seeds a local source and logs the seed so a failing
// randomized trial can be replayed.
func newTestRand(t *testing.T) *rand.Rand {
	t.Helper()
	seed := time.Now().UnixNano()
	t.Logf("rand seed: %d", seed)
	return rand.New(rand.NewSource(seed))
}
