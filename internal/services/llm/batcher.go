package llm

import (
	"context"
	"time"

	"github.com/ternarybob/nuntius/internal/models"
)

const queueDepth = 100

// pending is one document waiting for a batch slot. The result channel is
// buffered so the drainer never blocks on a caller that gave up; a nil
// result means the analysis failed.
type pending struct {
	doc    *models.SECDoc
	result chan *models.Analysis
}

// batcher collects pending documents and hands them to process in groups.
// A batch ships when it reaches size or when flush elapses after the first
// item arrived, whichever comes first. One goroutine drains the queue, so
// process never runs concurrently with itself.
type batcher struct {
	queue   chan *pending
	size    int
	flush   time.Duration
	process func([]*pending)
	done    chan struct{}
}

func newBatcher(size int, flush time.Duration, process func([]*pending)) *batcher {
	if size <= 0 {
		size = 5
	}
	if flush <= 0 {
		flush = 2 * time.Second
	}
	b := &batcher{
		queue:   make(chan *pending, queueDepth),
		size:    size,
		flush:   flush,
		process: process,
		done:    make(chan struct{}),
	}
	go b.run()
	return b
}

// enqueue offers a document to the queue, giving up when the caller's
// context expires before a slot frees. A false return means the document was
// dropped, not deferred.
func (b *batcher) enqueue(ctx context.Context, p *pending) bool {
	select {
	case b.queue <- p:
		return true
	case <-ctx.Done():
		return false
	}
}

func (b *batcher) run() {
	defer close(b.done)

	timer := time.NewTimer(b.flush)
	if !timer.Stop() {
		<-timer.C
	}

	var batch []*pending
	ship := func() {
		if len(batch) == 0 {
			return
		}
		b.process(batch)
		batch = nil
	}

	for {
		select {
		case p, ok := <-b.queue:
			if !ok {
				timer.Stop()
				ship()
				return
			}
			if len(batch) == 0 {
				timer.Reset(b.flush)
			}
			batch = append(batch, p)
			if len(batch) >= b.size {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				ship()
			}
		case <-timer.C:
			ship()
		}
	}
}

// close stops the drainer after the in-flight batch finishes. Queued
// documents still waiting are processed before run returns.
func (b *batcher) close() {
	close(b.queue)
	<-b.done
}
