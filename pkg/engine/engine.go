// Package engine executes registered programs off-chain and turns their
// journals into proofs the ledger can verify.
package engine

import (
	"context"

	"github.com/proofmarket/prover/x/prover/types"
)

// Job is one program execution.
type Job struct {
	ImageID types.ImageID
	Program []byte
	Args    types.Args
}

// Engine executes a job and proves it. Failures wrap types.ErrExecutionFault.
type Engine interface {
	Execute(ctx context.Context, job Job) (types.Proof, error)
}

// AbandonCounter is implemented by engines that keep executing runs they
// have given up on.
type AbandonCounter interface {
	Abandoned() int
}

// Func adapts a function to Engine.
type Func func(ctx context.Context, job Job) (types.Proof, error)

func (f Func) Execute(ctx context.Context, job Job) (types.Proof, error) {
	return f(ctx, job)
}
