package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"runtime"
	"sync/atomic"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"github.com/wasmerio/wasmer-go/wasmer"
	"golang.org/x/sync/semaphore"

	"github.com/proofmarket/prover/x/prover/receipt"
	"github.com/proofmarket/prover/x/prover/types"
)

// WASMConfig configures the WASM engine.
type WASMConfig struct {
	// SegmentCycles is the trace length covered by one receipt segment.
	SegmentCycles uint64
	// MaxJournalWords bounds the words a program may commit.
	MaxJournalWords int
	// MaxRuns bounds the wasmer instances alive at once, abandoned runs
	// included. Zero means one per CPU.
	MaxRuns int
}

// DefaultWASMConfig returns the default WASM engine configuration.
func DefaultWASMConfig() WASMConfig {
	return WASMConfig{
		SegmentCycles:   receipt.DefaultSegmentCycles,
		MaxJournalWords: 1 << 16,
		MaxRuns:         runtime.NumCPU(),
	}
}

// WASM runs programs compiled to WebAssembly and proves them with dev-mode
// receipts. A program exports a "main" function taking no parameters and may
// import:
//
//	env.read_word() -> i32   next argument word, arguments flattened in order
//	env.commit(i32)          append a little-endian word to the journal
type WASM struct {
	cfg    WASMConfig
	engine *wasmer.Engine
	logger log.Logger

	// runs holds one slot per live instance until its goroutine returns
	runs      *semaphore.Weighted
	abandoned atomic.Int64
}

var (
	_ Engine         = (*WASM)(nil)
	_ AbandonCounter = (*WASM)(nil)
)

// NewWASM returns a WASM engine.
func NewWASM(cfg WASMConfig, logger log.Logger) *WASM {
	if cfg.MaxRuns <= 0 {
		cfg.MaxRuns = runtime.NumCPU()
	}
	return &WASM{
		cfg:    cfg,
		engine: wasmer.NewEngine(),
		logger: logger.With("module", "engine", "engine", "wasm"),
		runs:   semaphore.NewWeighted(int64(cfg.MaxRuns)),
	}
}

// Abandoned returns the number of runs given up on that are still executing.
func (w *WASM) Abandoned() int {
	return int(w.abandoned.Load())
}

const (
	runRunning int32 = iota
	runFinished
	runAbandoned
)

type wasmRun struct {
	journal []byte
	trace   uint64
	err     error
}

// Execute runs job to completion. wasmer cannot interrupt a running
// instance, so on cancellation the run is abandoned rather than stopped. An
// abandoned run keeps its slot until it returns, so runaway programs cannot
// pile up past MaxRuns.
func (w *WASM) Execute(ctx context.Context, job Job) (types.Proof, error) {
	if err := ctx.Err(); err != nil {
		return types.Proof{}, errorsmod.Wrapf(types.ErrExecutionFault, "image %s: %v", job.ImageID, err)
	}
	if err := w.runs.Acquire(ctx, 1); err != nil {
		return types.Proof{}, errorsmod.Wrapf(types.ErrExecutionFault, "image %s: waiting for an execution slot: %v", job.ImageID, err)
	}

	var state atomic.Int32 // runRunning, runFinished or runAbandoned
	done := make(chan wasmRun, 1)
	go func() {
		defer w.runs.Release(1)
		res := w.run(job)
		if !state.CompareAndSwap(runRunning, runFinished) {
			w.abandoned.Add(-1)
			w.logger.Info("abandoned execution returned", "image_id", job.ImageID.String())
		}
		done <- res
	}()

	select {
	case <-ctx.Done():
		w.abandoned.Add(1)
		if !state.CompareAndSwap(runRunning, runAbandoned) {
			w.abandoned.Add(-1)
		}
		w.logger.Info("execution abandoned", "image_id", job.ImageID.String(), "error", ctx.Err().Error())
		return types.Proof{}, errorsmod.Wrapf(types.ErrExecutionFault, "image %s: %v", job.ImageID, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return types.Proof{}, errorsmod.Wrapf(types.ErrExecutionFault, "image %s: %v", job.ImageID, res.err)
		}
		segments := receipt.SegmentCount(res.trace, w.cfg.SegmentCycles)
		w.logger.Debug("execution finished", "image_id", job.ImageID.String(), "journal_bytes", len(res.journal), "segments", segments)
		return receipt.Prove(job.ImageID, res.journal, segments), nil
	}
}

func (w *WASM) run(job Job) wasmRun {
	store := wasmer.NewStore(w.engine)
	module, err := wasmer.NewModule(store, job.Program)
	if err != nil {
		return wasmRun{err: fmt.Errorf("compile: %w", err)}
	}

	var (
		words   = job.Args.Words()
		read    int
		journal []byte
		trace   uint64
	)

	readWord := wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(), wasmer.NewValueTypes(wasmer.I32)),
		func(_ []wasmer.Value) ([]wasmer.Value, error) {
			if read >= len(words) {
				return nil, fmt.Errorf("read_word: arguments exhausted after %d words", read)
			}
			word := words[read]
			read++
			trace++
			return []wasmer.Value{wasmer.NewI32(int32(word))}, nil
		},
	)

	commit := wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if len(journal)/4 >= w.cfg.MaxJournalWords {
				return nil, fmt.Errorf("commit: journal exceeds %d words", w.cfg.MaxJournalWords)
			}
			journal = binary.LittleEndian.AppendUint32(journal, uint32(args[0].I32()))
			trace++
			return []wasmer.Value{}, nil
		},
	)

	imports := wasmer.NewImportObject()
	imports.Register("env", map[string]wasmer.IntoExtern{
		"read_word": readWord,
		"commit":    commit,
	})

	instance, err := wasmer.NewInstance(module, imports)
	if err != nil {
		return wasmRun{err: fmt.Errorf("instantiate: %w", err)}
	}

	entry, err := instance.Exports.GetFunction("main")
	if err != nil {
		return wasmRun{err: fmt.Errorf("entry point: %w", err)}
	}
	if _, err := entry(); err != nil {
		return wasmRun{err: fmt.Errorf("trap: %w", err)}
	}

	return wasmRun{journal: journal, trace: trace}
}
