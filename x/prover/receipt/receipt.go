// Package receipt implements dev-mode receipts: a deterministic proof chain
// that binds a journal to an image id without a proving system. It is meant
// for local networks and tests, where the ledger must still reject reordered,
// truncated or foreign proofs.
package receipt

import (
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/blake2b"

	"github.com/proofmarket/prover/x/prover/types"
)

// SealWords is the number of 32-bit words in a dev-mode seal.
const SealWords = blake2b.Size256 / 4

// DefaultSegmentCycles is the execution length covered by one segment.
const DefaultSegmentCycles uint64 = 1 << 20

var sealDomain = []byte("proofmarket/dev-receipt/v1")

// Prove builds a dev-mode proof of segments links over journal.
func Prove(imageID types.ImageID, journal []byte, segments int) types.Proof {
	if segments < 1 {
		segments = 1
	}

	proof := types.Proof{
		Segments: make([]types.Segment, 0, segments),
		Journal:  append([]byte{}, journal...),
	}

	var prev []uint32
	for i := 0; i < segments; i++ {
		seal := sealFor(imageID, uint32(i), journal, prev)
		proof.Segments = append(proof.Segments, types.Segment{Seal: seal, Index: uint32(i)})
		prev = seal
	}
	return proof
}

// SegmentCount returns how many segments an execution of cycles needs when
// each segment covers at most limit cycles.
func SegmentCount(cycles, limit uint64) int {
	if limit == 0 {
		limit = DefaultSegmentCycles
	}
	if cycles == 0 {
		return 1
	}
	return int((cycles + limit - 1) / limit)
}

// Verifier checks dev-mode proofs.
type Verifier struct{}

var _ types.ReceiptVerifier = Verifier{}

// Verify recomputes the seal chain and accepts the proof only if every
// segment matches and indexes run from zero without gaps.
func (Verifier) Verify(proof types.Proof, imageID types.ImageID) bool {
	if len(proof.Segments) == 0 {
		return false
	}

	var prev []uint32
	for i, seg := range proof.Segments {
		if seg.Index != uint32(i) {
			return false
		}
		want := sealFor(imageID, seg.Index, proof.Journal, prev)
		if !equalWords(want, seg.Seal) {
			return false
		}
		prev = seg.Seal
	}
	return true
}

// VerifierFunc adapts a function to types.ReceiptVerifier.
type VerifierFunc func(proof types.Proof, imageID types.ImageID) bool

func (f VerifierFunc) Verify(proof types.Proof, imageID types.ImageID) bool {
	return f(proof, imageID)
}

// AcceptAll verifies every proof. Only for tests.
var AcceptAll = VerifierFunc(func(types.Proof, types.ImageID) bool { return true })

func sealFor(imageID types.ImageID, index uint32, journal []byte, prev []uint32) []uint32 {
	h, _ := blake2b.New256(nil)
	h.Write(sealDomain)
	h.Write(imageID[:])
	writeUint32(h, index)
	writeUint32(h, uint32(len(journal)))
	h.Write(journal)
	for _, w := range prev {
		writeUint32(h, w)
	}

	sum := h.Sum(nil)
	seal := make([]uint32, SealWords)
	for i := range seal {
		seal[i] = binary.LittleEndian.Uint32(sum[4*i:])
	}
	return seal
}

func writeUint32(h hash.Hash, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	h.Write(buf[:])
}

func equalWords(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
