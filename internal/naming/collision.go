package naming

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// CollisionResolver records which input owns each output path of a batch.
// Safe for concurrent use.
type CollisionResolver struct {
	mu     sync.Mutex
	owners map[string]string // output path → owning input path
	next   map[string]int    // requested path → first suffix worth trying
}

// NewCollisionResolver returns an empty resolver.
func NewCollisionResolver() *CollisionResolver {
	return &CollisionResolver{
		owners: make(map[string]string),
		next:   make(map[string]int),
	}
}

// Resolve claims output for input. When another input already owns it, the
// first free "<stem>-N<ext>" sibling (N ≥ 1) is claimed and returned instead.
func (cr *CollisionResolver) Resolve(input, output string) string {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if cr.free(output, input) {
		cr.owners[output] = input
		return output
	}
	ext := filepath.Ext(output)
	stem := strings.TrimSuffix(output, ext)
	for n := max(cr.next[output], 1); ; n++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, n, ext)
		if cr.free(candidate, input) {
			cr.owners[candidate] = input
			cr.next[output] = n + 1
			return candidate
		}
	}
}

// Claim takes output for input without renaming. It returns the input that
// owned output before, if that was a different one; the caller's file will
// overwrite that input's output.
func (cr *CollisionResolver) Claim(input, output string) (previous string, collided bool) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	prev, ok := cr.owners[output]
	cr.owners[output] = input
	if !ok || prev == input {
		return "", false
	}
	return prev, true
}

// Owner reports which input owns output.
func (cr *CollisionResolver) Owner(output string) (string, bool) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	in, ok := cr.owners[output]
	return in, ok
}

func (cr *CollisionResolver) free(output, input string) bool {
	owner, ok := cr.owners[output]
	return !ok || owner == input
}
