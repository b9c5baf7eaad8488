package server

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/raniellyferreira/inmemdb/protocol"
)

type delivery struct {
	id     string
	frames []protocol.Value
}

// dispatcher delivers pub/sub messages and replication frames off the
// executor. A recipient always hashes to the same worker, so it receives
// frames in the order they were dispatched. Workers never wait on a client.
type dispatcher struct {
	queues []chan delivery
	lookup func(id string) (*Client, bool)

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func newDispatcher(workers, depth int, lookup func(string) (*Client, bool)) *dispatcher {
	d := &dispatcher{
		queues: make([]chan delivery, workers),
		lookup: lookup,
	}
	for i := range d.queues {
		d.queues[i] = make(chan delivery, depth)
		d.wg.Add(1)
		go d.work(d.queues[i])
	}
	return d
}

// dispatch hands frames for recipient id to its worker
func (d *dispatcher) dispatch(id string, frames ...protocol.Value) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return
	}
	d.queues[xxhash.Sum64String(id)%uint64(len(d.queues))] <- delivery{id: id, frames: frames}
}

func (d *dispatcher) work(queue <-chan delivery) {
	defer d.wg.Done()
	for dl := range queue {
		client, ok := d.lookup(dl.id)
		if !ok {
			continue
		}
		for _, frame := range dl.frames {
			if !client.push(frame) {
				break
			}
		}
	}
}

func (d *dispatcher) stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
