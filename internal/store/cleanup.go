package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/akrtake/PromoReels/internal/shared"
)

// StartRevocationSweeper runs a background goroutine that periodically
// removes revocation-denylist rows whose cookies have expired anyway.
func StartRevocationSweeper(ctx context.Context, repo Repository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Revocation sweeper started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				sweepOnce(ctx, repo)
			case <-ctx.Done():
				slog.Info("Revocation sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepOnce(ctx context.Context, repo Repository) {
	deleted, err := cleanupWithRetry(ctx, repo)
	if err != nil {
		slog.Error("Revocation sweeper failed", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Revocation sweeper removed expired rows", "count", deleted)
	}
}

// cleanupWithRetry retries the delete with exponential backoff to ride out
// SQLITE_BUSY from a concurrent logout write.
func cleanupWithRetry(ctx context.Context, repo Repository) (int64, error) {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		deleted, err := repo.CleanupExpiredRevocations(ctx)
		if err == nil {
			return deleted, nil
		}
		lastErr = err

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("Revocation cleanup hit SQLITE_BUSY, retrying",
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}
		break
	}
	return 0, lastErr
}
