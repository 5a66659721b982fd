// Package queue runs speech jobs one at a time in arrival order.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the queue is at capacity.
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueClosed is returned when attempting to enqueue to a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrDuplicateJob is returned when a job with the same dedupe key exists.
	ErrDuplicateJob = errors.New("duplicate job")
)

// PlaybackHandler is called by the worker to play a job.
type PlaybackHandler func(ctx context.Context, job *SpeakJob) error

// IdleCallback is called when the queue has been empty for the idle timeout.
type IdleCallback func()

// ShutdownCallback is called once after the worker has stopped.
type ShutdownCallback func()

// JobCompletedCallback is called by the worker after each dequeued job has
// been handled, whatever the outcome.
type JobCompletedCallback func(job *SpeakJob)

// DepthObserver receives the number of pending jobs whenever it changes.
type DepthObserver func(depth int)

// Stats counts what the worker has done with dequeued jobs.
type Stats struct {
	Pending   int  `json:"pending"`
	Playing   bool `json:"playing"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Cancelled int  `json:"cancelled"`
	Expired   int  `json:"expired"`
}

// Queue is a bounded queue with a single playback worker.
type Queue struct {
	mu               sync.Mutex
	jobs             []*SpeakJob
	capacity         int
	dedupeKeys       map[string]bool
	logger           *slog.Logger
	closed           bool
	idleTimeout      time.Duration
	idleCallback     IdleCallback
	shutdownCallback ShutdownCallback
	jobCompleted     JobCompletedCallback
	depthObserver    DepthObserver
	playbackFunc     PlaybackHandler
	cancelCurrent    context.CancelFunc
	stats            Stats
	wg               sync.WaitGroup
	stopOnce         sync.Once
	stopCh           chan struct{}
	enqueueCh        chan struct{}
}

// NewQueue creates a new bounded queue.
func NewQueue(capacity int, idleTimeout time.Duration, logger *slog.Logger) *Queue {
	return &Queue{
		jobs:        make([]*SpeakJob, 0, capacity),
		capacity:    capacity,
		dedupeKeys:  make(map[string]bool),
		logger:      logger,
		idleTimeout: idleTimeout,
		stopCh:      make(chan struct{}),
		enqueueCh:   make(chan struct{}, 1),
	}
}

// SetPlaybackHandler sets the function called to play each job.
func (q *Queue) SetPlaybackHandler(fn PlaybackHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.playbackFunc = fn
}

// SetIdleCallback sets the function called when the queue becomes idle.
func (q *Queue) SetIdleCallback(fn IdleCallback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.idleCallback = fn
}

// SetShutdownCallback sets the function called after Stop has drained the
// worker.
func (q *Queue) SetShutdownCallback(fn ShutdownCallback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shutdownCallback = fn
}

// SetJobCompletedCallback sets the function called after each job.
func (q *Queue) SetJobCompletedCallback(fn JobCompletedCallback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobCompleted = fn
}

// SetDepthObserver sets the function told about queue depth changes.
func (q *Queue) SetDepthObserver(fn DepthObserver) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.depthObserver = fn
}

// Enqueue adds a job to the queue. An interrupting job first cancels the
// current playback and clears pending jobs, in the same critical section.
func (q *Queue) Enqueue(job *SpeakJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if job.Interrupt {
		q.interruptLocked()
	}

	if len(q.jobs) >= q.capacity {
		return ErrQueueFull
	}

	if job.DedupeKey != "" && q.dedupeKeys[job.DedupeKey] {
		return ErrDuplicateJob
	}

	q.jobs = append(q.jobs, job)
	if job.DedupeKey != "" {
		q.dedupeKeys[job.DedupeKey] = true
	}
	q.notifyDepthLocked()

	q.logger.Debug("job enqueued", "job_id", job.ID, "queue_depth", len(q.jobs))

	select {
	case q.enqueueCh <- struct{}{}:
	default:
	}

	return nil
}

// Interrupt cancels the current playback and clears the queue.
func (q *Queue) Interrupt() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.interruptLocked()
}

func (q *Queue) interruptLocked() {
	if q.cancelCurrent != nil {
		q.cancelCurrent()
		q.cancelCurrent = nil
	}

	cleared := len(q.jobs)
	q.jobs = q.jobs[:0]
	q.dedupeKeys = make(map[string]bool)
	q.notifyDepthLocked()

	q.logger.Info("queue interrupted", "jobs_cleared", cleared)
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Pending = len(q.jobs)
	s.Playing = q.cancelCurrent != nil
	return s
}

// Start begins the playback worker goroutine.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
}

// Stop cancels the current job, waits for the worker to exit, then runs the
// shutdown callback. Calling Stop more than once is safe.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		if q.cancelCurrent != nil {
			q.cancelCurrent()
		}
		q.mu.Unlock()

		close(q.stopCh)
		q.wg.Wait()

		q.mu.Lock()
		callback := q.shutdownCallback
		q.mu.Unlock()
		if callback != nil {
			callback()
		}
	})
}

// worker is the single playback goroutine.
func (q *Queue) worker() {
	defer q.wg.Done()

	var idleTimer *time.Timer
	var idleTimerCh <-chan time.Time

	stopIdleTimer := func() {
		if idleTimer != nil {
			idleTimer.Stop()
			idleTimerCh = nil
		}
	}

	for {
		select {
		case <-q.stopCh:
			stopIdleTimer()
			return
		default:
		}

		if job, ctx := q.dequeue(); job != nil {
			stopIdleTimer()
			q.processJob(ctx, job)

			q.mu.Lock()
			completed := q.jobCompleted
			q.mu.Unlock()
			if completed != nil {
				completed(job)
			}
			continue
		}

		if idleTimerCh == nil && q.idleTimeout > 0 {
			idleTimer = time.NewTimer(q.idleTimeout)
			idleTimerCh = idleTimer.C
		}

		select {
		case <-q.stopCh:
			stopIdleTimer()
			return
		case <-q.enqueueCh:
		case <-idleTimerCh:
			q.mu.Lock()
			callback := q.idleCallback
			q.mu.Unlock()

			if callback != nil {
				q.logger.Info("idle timeout reached")
				callback()
			}
			// Fires once per idle period; the next job re-arms it.
			idleTimerCh = nil
			idleTimer = nil
		}
	}
}

// dequeue removes the next unexpired job and makes it current in the same
// critical section, so an Interrupt either clears it or cancels its context.
func (q *Queue) dequeue() (*SpeakJob, context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.jobs) > 0 {
		job := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		q.notifyDepthLocked()

		if job.DedupeKey != "" {
			delete(q.dedupeKeys, job.DedupeKey)
		}

		if job.IsExpired() {
			q.stats.Expired++
			q.logger.Debug("skipping expired job", "job_id", job.ID)
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		q.cancelCurrent = cancel
		return job, ctx
	}

	return nil, nil
}

// processJob runs the handler for the current job. ctx is cancelled by
// Interrupt and Stop.
func (q *Queue) processJob(ctx context.Context, job *SpeakJob) {
	q.mu.Lock()
	handler := q.playbackFunc
	cancel := q.cancelCurrent
	q.mu.Unlock()

	var err error
	defer func() {
		q.mu.Lock()
		if cancel != nil {
			cancel()
		}
		q.cancelCurrent = nil
		switch {
		case handler == nil:
		case errors.Is(err, context.Canceled):
			q.stats.Cancelled++
		case err != nil:
			q.stats.Failed++
		default:
			q.stats.Completed++
		}
		q.mu.Unlock()
	}()

	if handler == nil {
		q.logger.Warn("no playback handler set, skipping job", "job_id", job.ID)
		return
	}

	q.logger.Info("processing job",
		"job_id", job.ID,
		"text_length", len(job.Text),
		"voice", job.Voice,
		"language", job.Language,
	)

	err = handler(ctx, job)
	switch {
	case errors.Is(err, context.Canceled):
		q.logger.Info("job cancelled", "job_id", job.ID)
	case err != nil:
		q.logger.Error("job failed", "job_id", job.ID, "error", err)
	default:
		q.logger.Info("job completed", "job_id", job.ID, "elapsed", time.Since(job.CreatedAt))
	}
}

func (q *Queue) notifyDepthLocked() {
	if q.depthObserver != nil {
		q.depthObserver(len(q.jobs))
	}
}
