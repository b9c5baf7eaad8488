package replication

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/raniellyferreira/inmemdb/protocol"
)

// Source is the primary-side view of the server used by the Broadcaster
type Source interface {
	// Drain removes the queued entries and passes them to publish together
	// with the ids of the registered slaves. publish runs on the server's
	// executor, so no write or slave registration lands between the two.
	Drain(publish func(entries []Entry, slaves []string)) error

	// Publish hands frames to the delivery path of one slave connection. It
	// must not block.
	Publish(slave string, frames []protocol.Value)
}

// Broadcaster periodically streams queued write commands to every slave
type Broadcaster struct {
	source Source
	period time.Duration
	logger Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewBroadcaster creates a broadcaster that ticks every period
func NewBroadcaster(source Source, period time.Duration) *Broadcaster {
	return &Broadcaster{
		source: source,
		period: period,
		logger: nopLogger{},
	}
}

// SetLogger sets the logger
func (b *Broadcaster) SetLogger(logger Logger) {
	b.logger = logger
}

// Start launches the ticker. Calling Start on a running broadcaster is a no-op.
func (b *Broadcaster) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	b.running = true
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})
	go b.run(b.stopCh, b.doneCh)
	b.logger.Info("Replication broadcaster started", "period", b.period)
}

// Stop halts the ticker. An in-flight tick completes but no new tick starts.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	close(b.stopCh)
	done := b.doneCh
	b.mu.Unlock()

	<-done
}

// Running reports whether the ticker is active
func (b *Broadcaster) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Broadcaster) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := b.Tick(); err != nil {
				b.logger.Error("Replication tick failed", "error", err)
			}
		}
	}
}

// Tick drains the queue once and publishes the resulting frames to every
// slave. A panic inside the tick is reported as an error.
func (b *Broadcaster) Tick() error {
	var tickErr error
	err := b.source.Drain(func(entries []Entry, slaves []string) {
		defer func() {
			if r := recover(); r != nil {
				tickErr = fmt.Errorf("replication tick panic: %v", r)
			}
		}()
		Broadcast(b.source, entries, slaves)
		if len(entries) > 0 && len(slaves) > 0 {
			b.logger.Debug("Replicated commands", "commands", len(entries), "slaves", len(slaves))
		}
	})
	if err != nil {
		return err
	}
	return tickErr
}

// Broadcast publishes the frames for entries to every slave. Nothing is sent
// when there are no slaves.
func Broadcast(source Source, entries []Entry, slaves []string) {
	if len(slaves) == 0 {
		return
	}
	frames := Frames(entries)
	for _, slave := range slaves {
		source.Publish(slave, frames)
	}
}

// Frames builds the stream sent on one tick: a PING keepalive, then the
// commands, with a SELECT before the first command and before every command
// whose keyspace differs from the previous one.
func Frames(entries []Entry) []protocol.Value {
	frames := make([]protocol.Value, 0, len(entries)+2)
	frames = append(frames, protocol.NewCommand("PING").Value())

	current := -1
	for _, entry := range entries {
		if entry.DB != current {
			frames = append(frames, protocol.NewCommand("SELECT", strconv.Itoa(entry.DB)).Value())
			current = entry.DB
		}
		frames = append(frames, entry.Command.Value())
	}
	return frames
}
