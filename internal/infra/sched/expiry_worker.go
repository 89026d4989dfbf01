package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"license-authority/internal/domain/ports/repository"
	"license-authority/internal/infra/metrics"
	"license-authority/internal/usecase"
)

// ExpiryWorker periodically scans for licenses close to expiry, exports the
// count and alerts the operators. Expiry itself is time-triggered and needs
// no write; this worker only observes.
type ExpiryWorker struct {
	interval time.Duration
	window   time.Duration
	licenses repository.LicenseRepository
	notifier usecase.AdminNotifier
	log      *zerolog.Logger
}

func NewExpiryWorker(interval, window time.Duration, licenses repository.LicenseRepository, notifier usecase.AdminNotifier, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		window:   window,
		licenses: licenses,
		notifier: notifier,
		log:      &l,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("window", w.window).Msg("starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *ExpiryWorker) scan(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	expiring, err := w.licenses.FindExpiring(ctx, repository.NoTX, w.window)
	if err != nil {
		w.log.Error().Err(err).Msg("expiry scan failed")
		return
	}
	metrics.SetLicensesExpiringSoon(len(expiring))
	if len(expiring) == 0 {
		return
	}

	w.log.Info().Int("count", len(expiring)).Msg("licenses expiring soon")
	if w.notifier != nil {
		msg := fmt.Sprintf("%d license(s) expire within %s; soonest: %s (%s)",
			len(expiring), w.window, expiring[0].ID, expiring[0].ExpiresAt.Format(time.RFC3339))
		if err := w.notifier.Notify(ctx, msg); err != nil {
			w.log.Warn().Err(err).Msg("expiry alert failed")
		}
	}
}
