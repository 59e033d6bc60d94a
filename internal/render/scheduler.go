package render

import (
	"sync"
	"time"
)

// Scheduler calls tick once per display frame until stop is called. No tick
// starts after stop returns.
type Scheduler interface {
	Start(tick func(now time.Time)) (stop func())
}

// TickerScheduler drives frames from a time.Ticker.
type TickerScheduler struct {
	interval time.Duration
}

// NewTickerScheduler creates a scheduler running at fps frames per second.
func NewTickerScheduler(fps int) *TickerScheduler {
	if fps <= 0 {
		fps = 60
	}
	return &TickerScheduler{interval: time.Second / time.Duration(fps)}
}

// Interval returns the frame period.
func (s *TickerScheduler) Interval() time.Duration {
	return s.interval
}

// Start begins ticking on a new goroutine.
func (s *TickerScheduler) Start(tick func(now time.Time)) func() {
	ticker := time.NewTicker(s.interval)
	stopChan := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		for {
			select {
			case now := <-ticker.C:
				select {
				case <-stopChan:
					return
				default:
				}
				tick(now)
			case <-stopChan:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(stopChan)
			<-finished
		})
	}
}
