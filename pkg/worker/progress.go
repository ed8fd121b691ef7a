package worker

import (
	"sync"

	"cosmossdk.io/log"
)

// progress tracks the tasks still running per dispatched height. A height is
// checkpointed only once its tasks and those of every lower height have
// ended, so a restart redelivers any block with unfinished work.
type progress struct {
	store  CheckpointStore
	logger log.Logger

	mu      sync.Mutex
	pending map[int64]int
	// heights holds dispatched, not yet checkpointed heights in order
	heights []int64
	last    int64
}

func newProgress(store CheckpointStore, logger log.Logger) *progress {
	return &progress{
		store:   store,
		logger:  logger,
		pending: make(map[int64]int),
	}
}

// dispatched registers height with tasks outstanding tasks. Heights must be
// dispatched in increasing order.
func (p *progress) dispatched(height int64, tasks int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.heights = append(p.heights, height)
	p.pending[height] = tasks
	p.advance()
}

// ended records that one task of height ended.
func (p *progress) ended(height int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending[height] > 0 {
		p.pending[height]--
	}
	p.advance()
}

func (p *progress) checkpoint() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *progress) advance() {
	done := int64(0)
	for len(p.heights) > 0 && p.pending[p.heights[0]] == 0 {
		done = p.heights[0]
		delete(p.pending, done)
		p.heights = p.heights[1:]
	}
	if done == 0 {
		return
	}

	p.last = done
	if p.store == nil {
		return
	}
	if err := p.store.Save(done); err != nil {
		p.logger.Error("failed to save checkpoint", "height", done, "error", err.Error())
	}
}
