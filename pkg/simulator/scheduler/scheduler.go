// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package scheduler implements the discrete-event loop that drives all channel and interface activity.
//
// Events are totally ordered by simulated time; events scheduled for the same instant run in the order
// they were scheduled. The loop itself is single-threaded. Other goroutines hand work to it via Inject,
// which is a multiple-producer, single-consumer queue preserving per-producer order.
package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/onosproject/onos-lib-go/pkg/logging"
	"github.com/onosproject/tapbridge-sim/pkg/simerrors"
)

var log = logging.GetLogger("simulator", "scheduler")

const (
	// DefaultOverrunSlack is the tolerated lag of real-time pacing before an overrun is reported
	DefaultOverrunSlack = 100 * time.Millisecond

	injectQueueSize = 1024
)

// Config controls the execution of the event loop
type Config struct {
	// Realtime paces simulated time to advance in lock-step with wall-clock time
	Realtime bool
	// OverrunSlack is the lag after which an overrun warning is raised; DefaultOverrunSlack if zero
	OverrunSlack time.Duration
	// OnOverrun is invoked on the loop goroutine at the start of each overrun episode
	OnOverrun func(warning *simerrors.RealtimeOverrunWarning)
}

// Stats summarizes one execution of the event loop
type Stats struct {
	Events   uint64
	SimTime  time.Duration
	Overruns int
	MaxLag   time.Duration
}

type event struct {
	at  time.Duration
	seq uint64
	fn  func()
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at == q[j].at {
		return q[i].seq < q[j].seq
	}
	return q[i].at < q[j].at
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x interface{}) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}

// Scheduler is a discrete-event scheduler with optional real-time pacing
//
// The zero value is not ready to use; construct using New.
type Scheduler struct {
	cfg Config

	// loop state; only touched by the goroutine executing Run
	now         time.Duration
	seq         uint64
	queue       eventQueue
	wallStart   time.Time
	stats       Stats
	overrunning bool
	closed      bool

	inbox    chan func()
	done     chan struct{}
	doneOnce sync.Once
}

// New creates a new scheduler
func New(cfg Config) *Scheduler {
	if cfg.OverrunSlack <= 0 {
		cfg.OverrunSlack = DefaultOverrunSlack
	}
	return &Scheduler{
		cfg:   cfg,
		inbox: make(chan func(), injectQueueSize),
		done:  make(chan struct{}),
	}
}

// Now returns the current simulated time. Must be called from the loop goroutine.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// Schedule arranges for fn to run after the given delay of simulated time. Must be called from
// the loop goroutine, or before Run.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) {
	if s.closed {
		return
	}
	if delay < 0 {
		delay = 0
	}
	s.push(s.now+delay, fn)
}

func (s *Scheduler) push(at time.Duration, fn func()) {
	heap.Push(&s.queue, &event{at: at, seq: s.seq, fn: fn})
	s.seq++
}

// Inject hands fn to the event loop from any goroutine; it runs at the current simulated time,
// which in real-time mode is the wall-clock time of its arrival. Returns false once the loop has
// terminated, in which case fn will never run.
func (s *Scheduler) Inject(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

// Done returns a channel that is closed when the event loop terminates
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Run executes events until the simulated clock reaches limit, then terminates the loop for good.
// In real-time mode Run returns no earlier than limit of wall-clock time after it was called.
func (s *Scheduler) Run(limit time.Duration) Stats {
	defer s.close()
	s.wallStart = time.Now()
	log.Debugf("Running event loop for %s (realtime=%t)", limit, s.cfg.Realtime)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	timer.Stop()

	for {
		s.drainInbox(limit)

		var next *event
		if len(s.queue) > 0 && s.queue[0].at <= limit {
			next = s.queue[0]
		}

		if s.cfg.Realtime {
			target := limit
			if next != nil {
				target = next.at
			}
			if wait := target - s.elapsed(); wait > 0 {
				timer.Reset(wait)
				select {
				case fn := <-s.inbox:
					timer.Stop()
					s.inject(fn, limit)
					continue
				case <-timer.C:
				}
			}
		}

		if next == nil {
			s.now = limit
			s.stats.SimTime = limit
			return s.stats
		}

		heap.Pop(&s.queue)
		if s.cfg.Realtime {
			s.checkLag(next.at)
		}
		s.now = next.at
		s.stats.Events++
		next.fn()
	}
}

func (s *Scheduler) drainInbox(limit time.Duration) {
	for {
		select {
		case fn := <-s.inbox:
			s.inject(fn, limit)
		default:
			return
		}
	}
}

// inject schedules an injected function at the current time
func (s *Scheduler) inject(fn func(), limit time.Duration) {
	at := s.now
	if s.cfg.Realtime {
		if e := s.elapsed(); e > at {
			at = e
		}
		if at > limit {
			at = limit
		}
	}
	s.push(at, fn)
}

func (s *Scheduler) elapsed() time.Duration {
	return time.Since(s.wallStart)
}

func (s *Scheduler) checkLag(at time.Duration) {
	lag := s.elapsed() - at
	if lag > s.stats.MaxLag {
		s.stats.MaxLag = lag
	}
	if lag <= s.cfg.OverrunSlack {
		s.overrunning = false
		return
	}
	if s.overrunning {
		return
	}
	s.overrunning = true
	s.stats.Overruns++
	warning := &simerrors.RealtimeOverrunWarning{SimTime: at, Lag: lag, Slack: s.cfg.OverrunSlack}
	log.Warnf("%v", warning)
	if s.cfg.OnOverrun != nil {
		s.cfg.OnOverrun(warning)
	}
}

func (s *Scheduler) close() {
	s.closed = true
	s.queue = nil
	s.doneOnce.Do(func() { close(s.done) })
}
