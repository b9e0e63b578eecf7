package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BankRefresher reloads a cached question bank.
type BankRefresher interface {
	Refresh(ctx context.Context) (questions int, supplemental int, err error)
}

// BankWarmer keeps the question-bank cache populated.
type BankWarmer struct {
	log      *zap.Logger
	bank     BankRefresher
	interval time.Duration
}

func NewBankWarmer(log *zap.Logger, bank BankRefresher, interval time.Duration) *BankWarmer {
	return &BankWarmer{log: log.Named("warmer"), bank: bank, interval: interval}
}

// Start loads the bank once and then on every tick until ctx is done. It
// returns immediately; a non-positive interval disables the loop.
func (w *BankWarmer) Start(ctx context.Context) {
	if w.interval <= 0 {
		return
	}
	w.log.Info("Starting question bank warmer", zap.Duration("interval", w.interval))
	go func() {
		w.refresh(ctx)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.refresh(ctx)
			}
		}
	}()
}

func (w *BankWarmer) refresh(ctx context.Context) {
	questions, supplemental, err := w.bank.Refresh(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("Failed to refresh question bank", zap.Error(err))
		}
		return
	}
	w.log.Debug("Question bank refreshed", zap.Int("questions", questions), zap.Int("supplemental", supplemental))
}
