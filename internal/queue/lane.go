package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrEmptySessionID is returned when Do is called with an empty session ID.
var ErrEmptySessionID = errors.New("queue: session ID must not be empty")

// ErrClosed is returned when work is submitted after Close.
var ErrClosed = errors.New("queue: closed")

// turn is a unit of research work submitted to a session's lane.
type turn struct {
	ctx  context.Context
	fn   func() error
	done chan error
}

// lane processes a single session's turns sequentially via one goroutine.
type lane struct {
	work chan turn
}

// run is the lane's worker loop, draining turns in FIFO order. A panicking
// turn is recovered and reported as its error; the lane keeps running.
func (l *lane) run() {
	for t := range l.work {
		if t.ctx.Err() != nil {
			t.done <- t.ctx.Err()
			continue
		}
		t.done <- l.safeExec(t.fn)
	}
}

// safeExec runs fn and converts panics to errors.
func (l *lane) safeExec(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: panic: %v", r)
		}
	}()
	return fn()
}

// defaultLaneBufferSize is the capacity of each lane's work channel.
// Tests in this package may override it to exercise full-buffer paths.
var defaultLaneBufferSize = 1024

// SessionQueue serializes research turns per chat session. Turns within one
// session run in submission order, one at a time; different sessions proceed
// concurrently. A session's lane is created lazily on first use and owns a
// single worker goroutine.
type SessionQueue struct {
	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool

	// senders counts Do calls between claiming a lane and finishing their
	// channel send. Close waits on it before closing any work channel, since
	// a send racing a close would panic.
	senders sync.WaitGroup
}

// NewSessionQueue creates an empty SessionQueue.
func NewSessionQueue() *SessionQueue {
	return &SessionQueue{
		lanes: make(map[string]*lane),
	}
}

// Do runs fn serially within sessionID's lane, blocking until the turn
// completes or ctx is cancelled. Returns fn's error, or ctx.Err() if the
// context is cancelled while queued or running.
func (q *SessionQueue) Do(ctx context.Context, sessionID string, fn func() error) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	l, err := q.laneFor(sessionID)
	if err != nil {
		return err
	}
	t := turn{
		ctx:  ctx,
		fn:   fn,
		done: make(chan error, 1),
	}

	// laneFor claimed a sender slot under the queue lock; release it once the
	// send attempt is over, whichever way it ends.
	select {
	case l.work <- t:
		q.senders.Done()
	case <-ctx.Done():
		q.senders.Done()
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// laneFor returns the lane for sessionID, starting its worker on first use,
// and claims a sender slot for the caller's upcoming send.
func (q *SessionQueue) laneFor(sessionID string) (*lane, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}
	l, ok := q.lanes[sessionID]
	if !ok {
		l = &lane{
			work: make(chan turn, defaultLaneBufferSize),
		}
		q.lanes[sessionID] = l
		go l.run()
	}
	q.senders.Add(1)
	return l, nil
}

// SessionCount returns the number of sessions with an active lane.
func (q *SessionQueue) SessionCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}

// Close stops accepting new work and lets each lane drain what it already
// holds. Turns still queued or mid-submission complete normally; subsequent
// Do calls fail with ErrClosed. Blocks until in-flight submissions have
// landed on their lanes.
func (q *SessionQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	// closed is set, so no new sender slots can be claimed; once the
	// in-flight ones finish, closing the channels is safe.
	q.senders.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, l := range q.lanes {
		close(l.work)
	}
}
