package usecase

import (
	"testing"
	"time"

	"TickFuse/internal/domain/models"
	"TickFuse/pkg/config"
)

func transitionAt(ts time.Time, to models.SignalLabel) models.SignalTransition {
	return models.SignalTransition{
		Timestamp: ts,
		From:      models.LabelNeutral,
		To:        to,
		Score:     0.5,
	}
}

func TestLedgerAppendOrdered(t *testing.T) {
	store := newTestStore(t, nil)
	l := NewLedger(store)
	base := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		l.Append(transitionAt(base.Add(time.Duration(i)*time.Minute), models.LabelBullish))
	}
	if l.Len() != 5 {
		t.Fatalf("len %d", l.Len())
	}

	tail := l.Tail(0)
	for i := 1; i < len(tail); i++ {
		if tail[i].Timestamp.Before(tail[i-1].Timestamp) {
			t.Fatalf("ledger must be time ordered")
		}
	}
}

func TestLedgerClampsBackwardTimestamp(t *testing.T) {
	store := newTestStore(t, nil)
	l := NewLedger(store)
	base := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

	l.Append(transitionAt(base, models.LabelBullish))
	l.Append(transitionAt(base.Add(-time.Minute), models.LabelBearish))

	tail := l.Tail(0)
	if tail[1].Timestamp.Before(tail[0].Timestamp) {
		t.Fatalf("backward timestamp must be clamped, got %v < %v", tail[1].Timestamp, tail[0].Timestamp)
	}
}

func TestLedgerRetentionEvictsOldest(t *testing.T) {
	store := newTestStore(t, func(p *config.Params) {
		p.LedgerRetention = 10
	})
	l := NewLedger(store)
	base := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		l.Append(transitionAt(base.Add(time.Duration(i)*time.Second), models.LabelBullish))
	}
	if l.Len() != 10 {
		t.Fatalf("expected retention cap of 10, got %d", l.Len())
	}
	tail := l.Tail(0)
	if !tail[0].Timestamp.Equal(base.Add(15 * time.Second)) {
		t.Fatalf("oldest surviving entry wrong: %v", tail[0].Timestamp)
	}
}

func TestLedgerRecentIsRestartable(t *testing.T) {
	store := newTestStore(t, nil)
	l := NewLedger(store)
	base := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		l.Append(transitionAt(base.Add(time.Duration(i)*time.Second), models.LabelBearish))
	}

	seq := l.Recent(3)
	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	if first != 3 || second != 3 {
		t.Fatalf("sequence must be restartable: first=%d second=%d", first, second)
	}

	// early break must not poison later iterations
	for range seq {
		break
	}
	count := 0
	for range seq {
		count++
	}
	if count != 3 {
		t.Fatalf("iteration after early break: %d", count)
	}
}

func TestLedgerTailBeyondLength(t *testing.T) {
	store := newTestStore(t, nil)
	l := NewLedger(store)
	l.Append(transitionAt(time.Now(), models.LabelBullish))

	if got := len(l.Tail(100)); got != 1 {
		t.Fatalf("tail beyond length must return all entries, got %d", got)
	}
}
