package server

import (
	"sync"
	"time"
)

// cleaner periodically posts an eviction sweep onto the executor. The timer
// goroutine never touches State itself.
type cleaner struct {
	server *Server
	period time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newCleaner(s *Server, period time.Duration) *cleaner {
	return &cleaner{server: s, period: period}
}

func (c *cleaner) start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.run(c.stopCh, c.doneCh)
}

func (c *cleaner) stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	done := c.doneCh
	c.mu.Unlock()
	<-done
}

func (c *cleaner) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.server.exec.post(func() {
				c.server.evict(time.Now())
			})
		}
	}
}

// evict removes expired keys from every keyspace. It runs on the executor
// and recovers from faults so later sweeps still run.
func (s *Server) evict(now time.Time) (removed int) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("Eviction failed", "tick", "evict", "panic", p)
			removed = 0
		}
	}()

	removed = s.state.EvictExpired(now)
	if removed > 0 {
		s.logger.Debug("Evicted expired keys", "count", removed)
	}
	if s.metrics != nil {
		s.metrics.RecordEviction(int64(removed))
		s.metrics.RecordKeyCount(int64(s.state.KeyCount()))
	}
	return removed
}
