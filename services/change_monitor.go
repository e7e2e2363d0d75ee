package services

import (
	"context"
	"sync"
	"time"

	"github.com/yeremiapane/waiter-pos/utils"
)

// ChangeMonitor periodically refetches every active order. It covers for push
// events lost while the feed was down.
type ChangeMonitor struct {
	Refresher Refresher
	StopChan  chan struct{}
	Interval  time.Duration
	Timeout   time.Duration

	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewChangeMonitor(refresher Refresher, interval time.Duration) *ChangeMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ChangeMonitor{
		Refresher: refresher,
		StopChan:  make(chan struct{}),
		Interval:  interval,
		Timeout:   interval,
	}
}

func (cm *ChangeMonitor) Start() {
	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		ticker := time.NewTicker(cm.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cm.checkChanges()
			case <-cm.StopChan:
				return
			}
		}
	}()
}

// Stop ends the poll loop and waits for an in-progress poll.
func (cm *ChangeMonitor) Stop() {
	cm.stopOnce.Do(func() { close(cm.StopChan) })
	cm.wg.Wait()
}

func (cm *ChangeMonitor) checkChanges() {
	ctx, cancel := context.WithTimeout(context.Background(), cm.Timeout)
	defer cancel()

	// stop aborts a slow poll
	go func() {
		select {
		case <-cm.StopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := cm.Refresher.RefreshAll(ctx); err != nil {
		utils.ErrorLogger.Errorf("Error polling active orders: %v", err)
		return
	}
	utils.InfoLogger.Debug("Polled active orders")
}
