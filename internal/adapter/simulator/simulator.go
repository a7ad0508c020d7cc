// Package simulator emits status updates for placed orders on a fixed
// timetable, standing in for a kitchen that reports progress.
package simulator

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/core/lifecycle"
	"github.com/rl1809/pizzeria/internal/port"
)

// Timings are offsets from the moment an order is tracked.
type Timings struct {
	Preparing time.Duration
	Dispatch  time.Duration // delivering or ready, by delivery type
	Complete  time.Duration
}

var DefaultTimings = Timings{
	Preparing: 5 * time.Second,
	Dispatch:  15 * time.Second,
	Complete:  25 * time.Second,
}

type Simulator struct {
	timings Timings
	logger  *zap.Logger
	updates chan port.StatusUpdate
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	timers  map[string][]*time.Timer
}

var _ port.StatusFeed = (*Simulator)(nil)

func New(timings Timings, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		timings: timings,
		logger:  logger,
		updates: make(chan port.StatusUpdate, 256),
		done:    make(chan struct{}),
		timers:  make(map[string][]*time.Timer),
	}
}

// Track schedules the remaining steps of the order's path. Tracking an order
// twice or after Stop does nothing.
func (s *Simulator) Track(order domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if _, ok := s.timers[order.ID]; ok {
		return
	}

	offsets := []time.Duration{0, s.timings.Preparing, s.timings.Dispatch, s.timings.Complete}
	path := lifecycle.Path(order.DeliveryType)
	var timers []*time.Timer
	for i := 1; i < len(path); i++ {
		u := port.StatusUpdate{OrderID: order.ID, Status: path[i]}
		last := i == len(path)-1
		s.wg.Add(1)
		timers = append(timers, time.AfterFunc(offsets[i], func() { s.emit(u, last) }))
	}
	s.timers[order.ID] = timers
	s.logger.Debug("tracking order", zap.String("order_id", order.ID))
}

func (s *Simulator) emit(u port.StatusUpdate, last bool) {
	defer s.wg.Done()
	u.At = time.Now()
	select {
	case s.updates <- u:
	case <-s.done:
		return
	}
	if last {
		s.mu.Lock()
		delete(s.timers, u.OrderID)
		s.mu.Unlock()
	}
}

func (s *Simulator) Updates() <-chan port.StatusUpdate {
	return s.updates
}

// Tracked reports how many orders still have updates scheduled.
func (s *Simulator) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Simulator) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.done)
	for _, timers := range s.timers {
		for _, t := range timers {
			if t.Stop() {
				s.wg.Done()
			}
		}
	}
	s.timers = nil
	s.mu.Unlock()

	s.wg.Wait()
	close(s.updates)
}
