// Package keeper implements the prover module keeper.
//
// The prover module is a marketplace for verifiable computation. Anyone can
// register a program under its image id, post a reward for a proof that the
// program ran on given arguments, and collect that reward by submitting a
// receipt the ledger can verify.
//
// # Core Functionality
//
// Program Registry: content-addressed, immutable storage of programs keyed by
// image id. A second upload under the same id fails.
//
// Proof Requests: one outstanding request per image id. Posting a request
// reserves the reward in the module account before the proof_requested event
// is emitted. A new request overwrites the previous one and releases its
// still-held reward back to the previous requester.
//
// Proof Verification: a submitted proof is accepted only for a registered
// program and only if the configured ReceiptVerifier accepts it. A held reward
// is paid to the submitter in the same transaction that stores the proof, so
// a reward is paid at most once.
//
// # Transactions
//
// DeliverTx decodes a signed Tx, checks the chain id, signature and
// per-signer sequence, and runs the message in a cache context. State writes
// and events are committed only when the message succeeds.
package keeper
