package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"

	"github.com/proofmarket/prover/x/prover/types"
)

// processWaitDelay bounds how long output pipes are drained after the
// prover is killed.
const processWaitDelay = 2 * time.Second

// ProcessConfig configures an external prover binary.
type ProcessConfig struct {
	// Path is the prover executable.
	Path string
	// Args are passed before the program file path.
	Args []string
	// Env is appended to the worker's environment.
	Env []string
}

// Process runs an external prover per job. The program is written to a
// temporary file whose path is the last command argument; the CBOR encoded
// args are written to stdin and the proof wire bytes are read from stdout.
// PROVER_IMAGE_ID carries the hex image id.
type Process struct {
	cfg    ProcessConfig
	logger log.Logger
}

var _ Engine = (*Process)(nil)

// NewProcess returns an engine that runs cfg.Path.
func NewProcess(cfg ProcessConfig, logger log.Logger) *Process {
	return &Process{
		cfg:    cfg,
		logger: logger.With("module", "engine", "engine", "process"),
	}
}

// Execute runs the prover and decodes its proof. The process is killed when
// ctx is done.
func (p *Process) Execute(ctx context.Context, job Job) (types.Proof, error) {
	stdin, err := types.Marshal(job.Args)
	if err != nil {
		return types.Proof{}, errorsmod.Wrapf(types.ErrExecutionFault, "encode args: %v", err)
	}

	programFile, err := writeProgram(job.Program)
	if err != nil {
		return types.Proof{}, errorsmod.Wrapf(types.ErrExecutionFault, "image %s: %v", job.ImageID, err)
	}
	defer os.Remove(programFile)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.cfg.Path, append(append([]string{}, p.cfg.Args...), programFile)...)
	cmd.Env = append(append(os.Environ(), p.cfg.Env...), "PROVER_IMAGE_ID="+job.ImageID.String())
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = processWaitDelay

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return types.Proof{}, errorsmod.Wrapf(types.ErrExecutionFault, "image %s: %s: %v: %s",
			job.ImageID, p.cfg.Path, err, lastLine(stderr.String()))
	}

	proof, err := types.UnmarshalProof(stdout.Bytes())
	if err != nil {
		return types.Proof{}, errorsmod.Wrapf(types.ErrExecutionFault, "image %s: prover output: %v", job.ImageID, err)
	}
	if err := proof.ValidateBasic(); err != nil {
		return types.Proof{}, errorsmod.Wrapf(types.ErrExecutionFault, "image %s: prover output: %v", job.ImageID, err)
	}

	p.logger.Debug("execution finished", "image_id", job.ImageID.String(), "segments", len(proof.Segments))
	return proof, nil
}

func writeProgram(program []byte) (string, error) {
	f, err := os.CreateTemp("", "program-*.bin")
	if err != nil {
		return "", fmt.Errorf("create program file: %w", err)
	}
	if _, err := f.Write(program); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write program file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close program file: %w", err)
	}
	return f.Name(), nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
