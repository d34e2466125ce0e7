package repository

import (
	"context"
	"time"

	"TickFuse/internal/domain/models"
)

// Recognizer is the primary capture collaborator: it extracts raw text from
// a configured screen region. The engine treats it as a black box.
type Recognizer interface {
	Recognize(ctx context.Context) (string, error)
}

// QuoteFetcher is the fallback collaborator: a vetted quote API.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) (float64, error)
}

// Publisher routes engine outputs to a message backend.
type Publisher interface {
	PublishTick(ctx context.Context, t *models.CanonicalTick) error
	PublishBar(ctx context.Context, b *models.Bar) error
	PublishTransition(ctx context.Context, tr *models.SignalTransition) error
	Close() error
}

// Storage persists engine outputs for later analysis.
type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StoreTick(ctx context.Context, t *models.CanonicalTick) error
	StoreBar(ctx context.Context, b *models.Bar) error
	StoreTransition(ctx context.Context, tr *models.SignalTransition) error
	Health(ctx context.Context) error
	Close() error
}

// BarStore provides read-only access to sealed bar history.
type BarStore interface {
	GetBars(ctx context.Context, from, to time.Time, res Resolution) ([]models.Bar, error)
	GetLatestNBars(ctx context.Context, n int, res Resolution) ([]models.Bar, error)
}

// Metrics records operational measurements.
type Metrics interface {
	RecordObservation(source string)
	RecordReject(source, kind string)
	RecordActiveSource(source string)
	RecordLastPrice(price float64)
	RecordBarSealed(resolution string)
	RecordTransition(from, to string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
