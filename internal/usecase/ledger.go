package usecase

import (
	"iter"
	"sync"

	"TickFuse/internal/domain/models"
	"TickFuse/pkg/config"
)

// Ledger is the append-only record of accepted signal transitions. It is the
// sole writer of transition history; retention is circular, never unbounded.
type Ledger struct {
	params *config.Store

	mu      sync.RWMutex
	entries []models.SignalTransition
}

func NewLedger(params *config.Store) *Ledger {
	return &Ledger{params: params}
}

// Append records a transition. Timestamps must be monotonic; an entry older
// than the newest recorded one is clamped to it rather than reordered.
func (l *Ledger) Append(tr models.SignalTransition) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.entries); n > 0 && tr.Timestamp.Before(l.entries[n-1].Timestamp) {
		tr.Timestamp = l.entries[n-1].Timestamp
	}
	l.entries = append(l.entries, tr)

	max := l.params.Current().LedgerRetention
	if len(l.entries) > max {
		// evict oldest; copy to release the backing array's head
		trimmed := make([]models.SignalTransition, max)
		copy(trimmed, l.entries[len(l.entries)-max:])
		l.entries = trimmed
	}
}

// Len reports the number of retained transitions.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Recent returns a lazy, time-ordered, restartable sequence over the most
// recent n transitions, oldest of the n first. Each iteration walks a
// consistent snapshot of the history.
func (l *Ledger) Recent(n int) iter.Seq[models.SignalTransition] {
	return func(yield func(models.SignalTransition) bool) {
		for _, tr := range l.snapshot(n) {
			if !yield(tr) {
				return
			}
		}
	}
}

// Tail returns a copy of the most recent n transitions, oldest first.
func (l *Ledger) Tail(n int) []models.SignalTransition {
	return l.snapshot(n)
}

func (l *Ledger) snapshot(n int) []models.SignalTransition {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]models.SignalTransition, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}
