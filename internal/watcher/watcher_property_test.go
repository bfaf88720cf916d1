//go:build property

package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties validates that bursts collapse into one batch
// holding each path once.
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("a burst yields one batch with unique paths", prop.ForAll(
		func(changeCount int, distinct int) bool {
			d := NewDebouncer(20 * time.Millisecond)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go d.start(ctx)

			for i := 0; i < changeCount; i++ {
				d.Add(ChangeEvent{Type: EventTypeModified, Path: fmt.Sprintf("f%d", i%distinct)})
			}

			expected := distinct
			if changeCount < distinct {
				expected = changeCount
			}

			select {
			case batch := <-d.Output():
				seen := map[string]bool{}
				for _, e := range batch {
					if seen[e.Path] {
						return false
					}
					seen[e.Path] = true
				}
				return len(batch) == expected
			case <-time.After(2 * time.Second):
				return false
			}
		},
		gen.IntRange(1, 50),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}

// TestPathsFilterProperties checks that the static filter never accepts a
// sibling that merely shares a name prefix.
func TestPathsFilterProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("prefix siblings are rejected", prop.ForAll(
		func(dir, suffix string) bool {
			base := filepath.Join("/project", dir)
			filter := PathsFilter([]string{base})
			return filter(filepath.Join(base, "x")) && !filter(base+suffix)
		},
		gen.RegexMatch(`^[a-z]{1,8}$`),
		gen.RegexMatch(`^[a-z0-9.]{1,4}$`),
	))

	properties.TestingRun(t)
}
