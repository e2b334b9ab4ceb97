package workflows

import (
	"context"
	"fmt"
	"log"

	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/core/ports"
	"github.com/samirrijal/aparka/internal/pkg/metrics"
)

// SpotLifecycleActivities holds the activity implementations for the
// spot lifecycle workflow.
type SpotLifecycleActivities struct {
	Spots     ports.SpotRepository
	Publisher ports.EventPublisher
	Cache     ports.CacheService
}

// SetSpotStatus writes the spot's final lifecycle status.
func (a *SpotLifecycleActivities) SetSpotStatus(ctx context.Context, spotID string, status domain.SpotStatus) error {
	if err := a.Spots.UpdateStatus(ctx, spotID, status); err != nil {
		return fmt.Errorf("update spot %s: %w", spotID, err)
	}
	if status == domain.SpotExpired {
		metrics.SpotsExpired.Inc()
	}
	if a.Cache != nil {
		_ = a.Cache.Delete(ctx, "spots:markers")
	}
	return nil
}

// AnnounceSpotStatus pushes the resolved status to the broker so open
// map sessions refresh without waiting for the periodic tick.
func (a *SpotLifecycleActivities) AnnounceSpotStatus(ctx context.Context, spotID string, status domain.SpotStatus) error {
	if a.Publisher == nil {
		log.Printf("ANNOUNCE (no publisher) → spot=%s status=%s", spotID, status)
		return nil
	}
	if err := a.Publisher.PublishSpotStatus(ctx, spotID, status); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	return a.Publisher.PublishSpotRefresh(ctx)
}

// DeleteSpot removes a spot record (saga compensation / rollback).
func (a *SpotLifecycleActivities) DeleteSpot(ctx context.Context, spotID string) error {
	if err := a.Spots.Delete(ctx, spotID); err != nil {
		return fmt.Errorf("delete spot %s: %w", spotID, err)
	}
	log.Printf("Spot %s deleted (saga compensation)", spotID)
	return nil
}
