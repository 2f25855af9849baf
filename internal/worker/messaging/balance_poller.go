package messagingworker

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/gmx-sms-connector/internal/connector"
	"github.com/wolfman30/gmx-sms-connector/pkg/logging"
)

type balanceUpdater interface {
	Update(ctx context.Context) (string, error)
}

// BalancePoller periodically refreshes the free SMS balance.
type BalancePoller struct {
	updater  balanceUpdater
	logger   *logging.Logger
	interval time.Duration
}

func NewBalancePoller(updater balanceUpdater, logger *logging.Logger) *BalancePoller {
	if logger == nil {
		logger = logging.Default()
	}
	return &BalancePoller{
		updater:  updater,
		logger:   logger,
		interval: 30 * time.Minute,
	}
}

func (p *BalancePoller) WithInterval(d time.Duration) *BalancePoller {
	if d > 0 {
		p.interval = d
	}
	return p
}

func (p *BalancePoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *BalancePoller) refresh(ctx context.Context) {
	if p.updater == nil {
		return
	}
	balance, err := p.updater.Update(ctx)
	switch {
	case err == nil:
		p.logger.Info("sms balance refreshed", "balance", balance)
	case errors.Is(err, connector.ErrNotReady):
		p.logger.Debug("sms balance refresh skipped", "error", err)
	default:
		p.logger.Warn("sms balance refresh failed", "error", err)
	}
}
