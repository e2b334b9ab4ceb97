// Package temporaladapter implements ports.LifecycleScheduler against a
// Temporal cluster.
package temporaladapter

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/samirrijal/aparka/internal/core/domain"
	"github.com/samirrijal/aparka/internal/workflows"
)

// Scheduler starts and signals spot lifecycle workflows.
type Scheduler struct {
	client    client.Client
	taskQueue string
}

// New connects to Temporal.
func New(hostPort, namespace, taskQueue string) (*Scheduler, error) {
	c, err := client.Dial(client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("temporal client: %w", err)
	}
	return &Scheduler{client: c, taskQueue: taskQueue}, nil
}

func workflowID(spotID string) string {
	return "spot-lifecycle-" + spotID
}

// ScheduleExpiry starts the lifecycle workflow for a new spot.
func (s *Scheduler) ScheduleExpiry(ctx context.Context, spotID string, ttl time.Duration) error {
	opts := client.StartWorkflowOptions{
		ID:        workflowID(spotID),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.ExecuteWorkflow(ctx, opts, workflows.SpotLifecycleWorkflow, workflows.SpotLifecycleInput{
		SpotID: spotID,
		TTL:    ttl,
	})
	if err != nil {
		return fmt.Errorf("start lifecycle workflow: %w", err)
	}
	return nil
}

// SignalResolution delivers an arrival resolution to the running
// workflow; its timer race decides the final status.
func (s *Scheduler) SignalResolution(ctx context.Context, spotID string, status domain.SpotStatus) error {
	err := s.client.SignalWorkflow(ctx, workflowID(spotID), "", workflows.ResolutionSignal, status)
	if err != nil {
		return fmt.Errorf("signal lifecycle workflow: %w", err)
	}
	return nil
}

// Close releases the Temporal client.
func (s *Scheduler) Close() {
	s.client.Close()
}
