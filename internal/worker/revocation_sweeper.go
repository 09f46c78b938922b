package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/leave-service/internal/revocation"
)

// StartRevocationSweeper periodically deletes denylist entries whose tokens
// have expired on their own. The denylist only needs to cover live tokens;
// anything older is rejected by signature expiry already.
func StartRevocationSweeper(ctx context.Context, registry *revocation.Registry, interval time.Duration, logger *zap.Logger) {
	if registry == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := registry.PurgeExpired(ctx)
				if err != nil {
					logger.Warn("revocation sweep failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Info("revocation sweep", zap.Int64("removed", removed))
				}
			}
		}
	}()
}
