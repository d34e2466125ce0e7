package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TickFuse/internal/domain/models"
	domrepo "TickFuse/internal/domain/repository"
	pkgkafka "TickFuse/pkg/kafka"

	"github.com/shopspring/decimal"
)

// KafkaMirrorHandler consumes the engine's output topic and mirrors the
// records into storage. It lets a Kafka-backed deployment keep queryable
// history without a second writer in the hot path.
type KafkaMirrorHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaMirrorHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaMirrorHandler {
	return &KafkaMirrorHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaMirrorHandler) Topic() string { return h.topic }

func (h *KafkaMirrorHandler) Handle(ctx context.Context, b []byte) error {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		h.metrics.RecordError("mirror_unmarshal")
		return err
	}

	start := time.Now()
	var err error
	switch head.Kind {
	case "tick":
		err = h.mirrorTick(ctx, b)
	case "bar":
		err = h.mirrorBar(ctx, b)
	case "transition":
		err = h.mirrorTransition(ctx, b)
	default:
		h.metrics.RecordError("mirror_unknown_kind")
		return fmt.Errorf("unknown record kind %q", head.Kind)
	}
	h.metrics.RecordLatency("mirror_store", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("mirror_store")
	}
	return err
}

func (h *KafkaMirrorHandler) mirrorTick(ctx context.Context, b []byte) error {
	var m struct {
		TS         int64   `json:"ts"`
		Price      string  `json:"price"`
		Source     string  `json:"source"`
		Confidence float64 `json:"confidence"`
		Stale      bool    `json:"stale"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	price, err := decimal.NewFromString(m.Price)
	if err != nil {
		return fmt.Errorf("tick price: %w", err)
	}
	return h.storage.StoreTick(ctx, &models.CanonicalTick{
		Timestamp:        time.UnixMilli(m.TS),
		Price:            price,
		ActiveSource:     models.Source(m.Source),
		SourceConfidence: m.Confidence,
		Stale:            m.Stale,
	})
}

func (h *KafkaMirrorHandler) mirrorBar(ctx context.Context, b []byte) error {
	var m struct {
		Resolution string `json:"resolution"`
		OpenTime   int64  `json:"open_time"`
		O          string `json:"o"`
		H          string `json:"h"`
		L          string `json:"l"`
		C          string `json:"c"`
		Ticks      int    `json:"ticks"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	bar := models.Bar{
		Resolution: m.Resolution,
		OpenTime:   time.UnixMilli(m.OpenTime),
		TickCount:  m.Ticks,
	}
	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&bar.Open, m.O}, {&bar.High, m.H}, {&bar.Low, m.L}, {&bar.Close, m.C},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return fmt.Errorf("bar price: %w", err)
		}
	}
	return h.storage.StoreBar(ctx, &bar)
}

func (h *KafkaMirrorHandler) mirrorTransition(ctx context.Context, b []byte) error {
	var m struct {
		TS    int64   `json:"ts"`
		From  string  `json:"from"`
		To    string  `json:"to"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	return h.storage.StoreTransition(ctx, &models.SignalTransition{
		Timestamp: time.UnixMilli(m.TS),
		From:      models.SignalLabel(m.From),
		To:        models.SignalLabel(m.To),
		Score:     m.Score,
	})
}

var _ pkgkafka.MessageHandler = (*KafkaMirrorHandler)(nil)
