package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/aparka/internal/core/domain"
)

// ResolutionSignal is the signal name carrying an arrival resolution
// into a running lifecycle workflow.
const ResolutionSignal = "spot-resolution"

// SpotLifecycleInput is the input for the spot lifecycle workflow.
type SpotLifecycleInput struct {
	SpotID string
	TTL    time.Duration
}

// SpotLifecycleWorkflow guards one public spot from creation to
// resolution. It races the expiry timer against a driver resolution
// signal: whichever fires first decides the spot's final status. A spot
// whose status update fails is deleted so it cannot linger half-resolved
// (saga compensation).
func SpotLifecycleWorkflow(ctx workflow.Context, input SpotLifecycleInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting spot lifecycle", "spotID", input.SpotID, "ttl", input.TTL)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	ttl := input.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	var resolution domain.SpotStatus
	resolved := false

	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	timer := workflow.NewTimer(timerCtx, ttl)
	signalCh := workflow.GetSignalChannel(ctx, ResolutionSignal)

	selector := workflow.NewSelector(ctx)
	selector.AddFuture(timer, func(f workflow.Future) {})
	selector.AddReceive(signalCh, func(ch workflow.ReceiveChannel, _ bool) {
		ch.Receive(ctx, &resolution)
		resolved = true
		cancelTimer()
	})
	selector.Select(ctx)

	status := domain.SpotExpired
	if resolved && resolution.Valid() {
		status = resolution
	}

	err := workflow.ExecuteActivity(ctx, "SetSpotStatus", input.SpotID, status).Get(ctx, nil)
	if err != nil {
		logger.Warn("status update failed, compensating", "spotID", input.SpotID, "error", err)
		// Compensate: remove the spot entirely rather than leave it stuck
		_ = workflow.ExecuteActivity(ctx, "DeleteSpot", input.SpotID).Get(ctx, nil)
		return err
	}

	_ = workflow.ExecuteActivity(ctx, "AnnounceSpotStatus", input.SpotID, status).Get(ctx, nil)

	logger.Info("Spot lifecycle finished", "spotID", input.SpotID, "status", status)
	return nil
}
