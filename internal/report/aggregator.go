// Package report collects structured status messages during a test run and
// renders the final summary.
//
// The aggregator is a single shared resource: one goroutine owns the run
// state and drains a message channel, so mutations never interleave.
// Senders go through Send, which degrades to a silent drop once the
// aggregator is stopped - a torn-down collector must not panic late
// senders during shutdown.
package report

import "sync"

// Snapshot is an immutable view of the run state.
type Snapshot struct {
	// Tests lists test identifiers seen so far, most recent first.
	Tests []string
	// Errors lists failures paired with the test current at arrival.
	Errors []TestError
	// Current is the test running when the snapshot was taken.
	Current string
}

// runState is the aggregator-goroutine-private mutable state. It is created
// at run start, mutated by every message, read for reporting, and discarded
// with the aggregator.
type runState struct {
	tests   []string
	errors  []TestError
	current string
}

func (s *runState) apply(m Message) {
	switch msg := m.(type) {
	case Started:
		s.current = msg.Test
		s.tests = append([]string{msg.Test}, s.tests...)
	case Failed:
		s.errors = append(s.errors, TestError{Test: msg.Test, Reason: msg.Reason})
	case ErrorReported:
		s.errors = append(s.errors, TestError{Test: s.current, Reason: msg.Reason})
	}
}

func (s *runState) snapshot() Snapshot {
	return Snapshot{
		Tests:   append([]string(nil), s.tests...),
		Errors:  append([]TestError(nil), s.errors...),
		Current: s.current,
	}
}

// Aggregator serializes status messages through a single owning goroutine.
type Aggregator struct {
	msgs    chan Message
	queries chan chan Snapshot
	done    chan struct{}

	mu      sync.Mutex
	stopped bool
	final   Snapshot
}

// NewAggregator starts the collector goroutine.
func NewAggregator() *Aggregator {
	a := &Aggregator{
		msgs:    make(chan Message, 64),
		queries: make(chan chan Snapshot),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Aggregator) run() {
	defer close(a.done)
	state := &runState{}

	for {
		select {
		case m, ok := <-a.msgs:
			if !ok {
				a.mu.Lock()
				a.final = state.snapshot()
				a.mu.Unlock()
				return
			}
			state.apply(m)
		case reply := <-a.queries:
			// Apply everything already buffered before answering, so a
			// snapshot reflects every Send that completed before the query.
			for {
				select {
				case m, ok := <-a.msgs:
					if !ok {
						a.mu.Lock()
						a.final = state.snapshot()
						a.mu.Unlock()
						reply <- a.final
						return
					}
					state.apply(m)
					continue
				default:
				}
				break
			}
			reply <- state.snapshot()
		}
	}
}

// Send delivers a message. After Stop it is a silent no-op: the caller is
// already being torn down and has nowhere to report the loss.
func (a *Aggregator) Send(m Message) {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	// Holding the lock across the channel send keeps Stop from closing
	// msgs while a send is in flight.
	a.msgs <- m
	a.mu.Unlock()
}

// Status returns an immutable snapshot of the run state. Safe to call
// before and after Stop.
func (a *Aggregator) Status() Snapshot {
	a.mu.Lock()
	if a.stopped {
		defer a.mu.Unlock()
		return a.final
	}
	a.mu.Unlock()

	reply := make(chan Snapshot, 1)
	select {
	case a.queries <- reply:
		return <-reply
	case <-a.done:
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.final
	}
}

// Stop tears down the aggregator and waits for the collector goroutine to
// drain remaining messages. Idempotent.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	close(a.msgs)
	a.mu.Unlock()

	<-a.done
}
