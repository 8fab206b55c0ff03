package demo

import (
	"fmt"
	"slices"
	"time"

	"github.com/go-drift/reactor/pkg/core"
	"github.com/go-drift/reactor/pkg/entity"
	"github.com/go-drift/reactor/pkg/errors"
	"github.com/go-drift/reactor/pkg/persist"
	"github.com/go-drift/reactor/pkg/task"
)

// Bucket is the persist bucket holding counts keyed by label.
const Bucket = "counters"

// SavedCount is one persisted counter.
type SavedCount struct {
	Label string
	Count int
}

// spawnAutosave starts a task that saves the board's counts every period
// while they change. It holds the board weakly and ends once the board is
// gone. The result is the number of saves.
func spawnAutosave(cx *core.Context, board *entity.Ref[Board], store *persist.Store, every time.Duration) *task.Handle[int] {
	weak := core.Downgrade(cx, board)
	return core.Spawn(cx, func(acx *core.AsyncContext) (int, error) {
		var last []SavedCount
		saves := 0
		for {
			if err := acx.Sleep(every); err != nil {
				return saves, err
			}

			strong, ok := core.Upgrade(acx, weak)
			if !ok {
				return saves, nil
			}
			counts, err := readCounts(acx, strong)
			strong.Release()
			if errors.Is(err, errors.ErrNotFound) {
				return saves, nil
			}
			if err != nil {
				return saves, err
			}
			if slices.Equal(counts, last) {
				continue
			}

			var saveErr error
			if err := acx.Scope().Compute(func() { saveErr = saveCounts(store, counts) }); err != nil {
				return saves, err
			}
			status := fmt.Sprintf("saved %d counters", len(counts))
			if saveErr != nil {
				status = "save failed: " + saveErr.Error()
			} else {
				last = counts
				saves++
			}
			err = core.Update(acx, weak, func(b *Board, cx *core.Context) error {
				b.Status = status
				cx.NotifySelf()
				return nil
			})
			if errors.Is(err, errors.ErrNotFound) {
				return saves, nil
			}
		}
	})
}

// readCounts snapshots the counts of board's counters.
func readCounts(a core.Accessor, board entity.Handle[Board]) ([]SavedCount, error) {
	counters, err := core.ReadValue(a, board, func(b *Board) []*entity.Ref[Counter] {
		return slices.Clone(b.Counters)
	})
	if err != nil {
		return nil, err
	}
	counts := make([]SavedCount, 0, len(counters))
	for _, c := range counters {
		sc, err := core.ReadValue(a, c, func(c *Counter) SavedCount {
			return SavedCount{Label: c.Label, Count: c.Count}
		})
		if err != nil {
			return nil, err
		}
		counts = append(counts, sc)
	}
	return counts, nil
}

func saveCounts(store *persist.Store, counts []SavedCount) error {
	for _, c := range counts {
		if err := store.Save(Bucket, c.Label, c.Count); err != nil {
			return err
		}
	}
	return nil
}
