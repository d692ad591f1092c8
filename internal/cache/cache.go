package cache

import (
	"context"
	"time"

	"retailtrack/internal/domain"
)

// ReportCache holds the low-stock report between store writes.
type ReportCache interface {
	GetLowStock(ctx context.Context, key string) ([]domain.Item, bool, error)
	SetLowStock(ctx context.Context, key string, items []domain.Item, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopReportCache struct{}

func (NoopReportCache) GetLowStock(_ context.Context, _ string) ([]domain.Item, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) SetLowStock(_ context.Context, _ string, _ []domain.Item, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
