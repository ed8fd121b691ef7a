package chain

import (
	"context"
	"errors"
	"time"

	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/proofmarket/prover/x/prover/types"
)

// Block is a finalized block reduced to its decoded prover events, in
// execution order.
type Block struct {
	Height int64
	Events []types.Event
}

// FeedConfig configures polling and retries of a Feed.
type FeedConfig struct {
	// PollInterval is the minimum delay between two status polls.
	PollInterval time.Duration
	// RetryBase is the first backoff delay after an RPC failure.
	RetryBase time.Duration
	// MaxRetries bounds retries of one RPC call before Next fails.
	MaxRetries uint64
}

// DefaultFeedConfig returns the default feed configuration.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		PollInterval: time.Second,
		RetryBase:    200 * time.Millisecond,
		MaxRetries:   5,
	}
}

// Feed yields finalized blocks in height order. It is not safe for
// concurrent use.
type Feed struct {
	rpc     RPC
	cfg     FeedConfig
	limiter *rate.Limiter
	logger  log.Logger

	next int64
	tip  int64
}

// NewFeed returns a feed whose first block is start. A start of zero begins
// with the first block after the current tip.
func NewFeed(rpc RPC, start int64, cfg FeedConfig, logger log.Logger) *Feed {
	return &Feed{
		rpc:     rpc,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.PollInterval), 1),
		logger:  logger.With("module", "feed"),
		next:    start,
	}
}

// Height returns the height of the next block Next will return.
func (f *Feed) Height() int64 {
	return f.next
}

// Next blocks until the next finalized block is available and returns it.
// Errors are ErrTransportFailure once retries are exhausted, or the context
// error.
func (f *Feed) Next(ctx context.Context) (*Block, error) {
	if f.next <= 0 {
		tip, err := f.latestHeight(ctx)
		if err != nil {
			return nil, err
		}
		f.tip = tip
		f.next = tip + 1
	}

	for f.next > f.tip {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		tip, err := f.latestHeight(ctx)
		if err != nil {
			return nil, err
		}
		f.tip = tip
	}

	block, err := f.block(ctx, f.next)
	if err != nil {
		return nil, err
	}
	f.next++
	return block, nil
}

func (f *Feed) latestHeight(ctx context.Context) (int64, error) {
	var height int64
	err := f.withRetry(ctx, func(ctx context.Context) error {
		status, err := f.rpc.Status(ctx)
		if err != nil {
			return err
		}
		height = status.SyncInfo.LatestBlockHeight
		return nil
	})
	return height, err
}

func (f *Feed) block(ctx context.Context, height int64) (*Block, error) {
	block := &Block{Height: height}

	err := f.withRetry(ctx, func(ctx context.Context) error {
		res, err := f.rpc.BlockResults(ctx, &height)
		if err != nil {
			return err
		}

		block.Events = block.Events[:0]
		for _, tx := range res.TxsResults {
			if tx == nil || tx.Code != abci.CodeTypeOK {
				continue
			}
			block.Events = f.appendEvents(block.Events, height, tx.Events)
		}
		block.Events = f.appendEvents(block.Events, height, res.FinalizeBlockEvents)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

func (f *Feed) appendEvents(out []types.Event, height int64, events []abci.Event) []types.Event {
	for _, ev := range events {
		parsed, err := types.ParseEvent(ev)
		if errors.Is(err, types.ErrUnknownEvent) {
			continue
		}
		if err != nil {
			f.logger.Error("dropping malformed event", "height", height, "type", ev.Type, "error", err.Error())
			continue
		}
		out = append(out, parsed)
	}
	return out
}

// withRetry runs fn with exponential backoff. Every RPC error is treated as
// transient until the retry budget runs out.
func (f *Feed) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(f.cfg.MaxRetries, retry.NewExponential(f.cfg.RetryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			f.logger.Debug("rpc call failed", "error", err.Error())
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return types.ErrTransportFailure.Wrap(err.Error())
	}
	return nil
}
