package server

import (
	"errors"
	"sync"
)

// ErrStopped is returned for work submitted after the executor stopped
var ErrStopped = errors.New("server: executor stopped")

// executor runs tasks one at a time on a single goroutine, in submission
// order. Everything that reads or writes State goes through it.
type executor struct {
	tasks    chan func()
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

func newExecutor(buffer int) *executor {
	e := &executor{
		tasks:  make(chan func(), buffer),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *executor) loop() {
	defer close(e.exited)
	for {
		select {
		case <-e.done:
			return
		case task := <-e.tasks:
			task()
		}
	}
}

// submit runs fn on the executor and waits for it to finish. It must never
// be called from a task already running on the executor.
func (e *executor) submit(fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case e.tasks <- task:
	case <-e.done:
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-e.exited:
		// the loop may have picked the task right before exiting
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// post enqueues fn without waiting. It reports false once stopped.
func (e *executor) post(fn func()) bool {
	select {
	case e.tasks <- fn:
		return true
	case <-e.done:
		return false
	}
}

// stop prevents new tasks and waits for the running one to finish
func (e *executor) stop() {
	e.stopOnce.Do(func() {
		close(e.done)
	})
	<-e.exited
}
