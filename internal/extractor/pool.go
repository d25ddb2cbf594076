package extractor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/antoniostano/chatrelay/internal/store"
)

const jobTimeout = 30 * time.Second

// Job is one finished exchange queued for fact mining.
type Job struct {
	UserID           string
	UserMessage      string
	AssistantMessage string
	Existing         []store.Memory
}

// Pool runs extraction jobs on background workers so the conversation path
// never waits on them.
type Pool struct {
	extractor *Extractor
	queue     chan Job
	wg        sync.WaitGroup
	logger    *zap.Logger

	mu     sync.Mutex
	closed bool
}

func NewPool(e *Extractor, workers, queueSize int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	p := &Pool{
		extractor: e,
		queue:     make(chan Job, queueSize),
		logger:    logger,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Enqueue submits a job without blocking. Returns false when the job was
// dropped, either because the queue is full or the pool has been closed.
// Turns finishing on hijacked websocket connections can outlive the HTTP
// server's Shutdown, so late submissions after Close must not panic.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.extractor.metrics.ExtractionEvents.WithLabelValues("pool_closed").Inc()
		p.logger.Warn("extraction job dropped, pool closed",
			zap.String("user_id", job.UserID),
		)
		return false
	}
	select {
	case p.queue <- job:
		return true
	default:
		p.extractor.metrics.ExtractionEvents.WithLabelValues("queue_full").Inc()
		p.logger.Warn("extraction job dropped, queue full",
			zap.String("user_id", job.UserID),
		)
		return false
	}
}

// Close stops accepting jobs and waits for in-flight ones to drain. Call
// during graceful shutdown after the HTTP server has stopped. Safe to call
// more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		p.extractor.Extract(ctx, job.UserID, job.UserMessage, job.AssistantMessage, job.Existing)
		cancel()
	}
}
