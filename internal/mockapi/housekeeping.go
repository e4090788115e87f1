package mockapi

import (
	"log/slog"
	"time"
)

// Housekeeper periodically sweeps expired codes, refresh tokens and
// sessions so a long-running mock does not grow without bound.
type Housekeeper struct {
	Service  *Service
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeeper defaults interval to one hour when it is not positive.
func NewHousekeeper(svc *Service, logger *slog.Logger, interval time.Duration) *Housekeeper {
	if interval <= 0 {
		interval = time.Hour
	}

	return &Housekeeper{
		Service:  svc,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start is non-blocking. Call Stop to shut the worker down.
func (h *Housekeeper) Start() {
	go h.run()
	h.Logger.Info("housekeeping started", "interval", h.Interval)
}

// Stop blocks until an in-progress sweep has finished.
func (h *Housekeeper) Stop() {
	close(h.stopCh)
	<-h.doneCh
	h.Logger.Info("housekeeping stopped")
}

func (h *Housekeeper) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := h.Service.Sweep(); n > 0 {
				h.Logger.Debug("swept expired records", "count", n)
			}
		case <-h.stopCh:
			return
		}
	}
}
