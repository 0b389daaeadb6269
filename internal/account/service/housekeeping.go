package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/keyhavenhq/accountd/internal/account/store"
	"github.com/keyhavenhq/accountd/pkg/jwtx"
)

// HousekeepingService periodically prunes expired signing keys so the key
// table and the published key set do not grow without bound. Removing an
// expired kid from the key set is the moment its tokens stop verifying.
type HousekeepingService struct {
	Store    store.SigningKeys
	KeySet   *jwtx.KeySet
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the background pruner. If interval is 0 or
// negative, defaults to 1 hour.
func NewHousekeepingService(keys store.SigningKeys, keySet *jwtx.KeySet, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	return &HousekeepingService{
		Store:    keys,
		KeySet:   keySet,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop shuts down the worker, blocking until any in-progress sweep finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep once on startup.
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep deletes expired signing keys and drops their kids from the
// published key set.
func (s *HousekeepingService) Sweep(ctx context.Context) {
	deleted, err := s.Store.DeleteExpiredSigningKeys(ctx)
	if err != nil {
		s.Logger.Error("failed to delete expired signing keys", "error", err)
		return
	}
	if deleted == 0 {
		return
	}

	// Reconcile the in-memory set against what survived in the store.
	remaining, err := s.Store.ListAllSigningKeys(ctx)
	if err != nil {
		s.Logger.Error("failed to list signing keys after sweep", "error", err)
		return
	}
	alive := make(map[string]struct{}, len(remaining))
	for _, key := range remaining {
		alive[key.Kid] = struct{}{}
	}
	for _, jwk := range s.KeySet.PublicJWKS().Keys {
		if _, ok := alive[jwk.Kid]; !ok {
			s.KeySet.Remove(jwk.Kid)
		}
	}

	s.Logger.Info("signing keys pruned", "deleted", deleted)
}
