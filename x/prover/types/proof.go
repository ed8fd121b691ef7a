package types

// Segment is one link of a receipt's prefix-ordered proof chain.
type Segment struct {
	Seal  []uint32 `cbor:"1,keyasint" json:"seal"`
	Index uint32   `cbor:"2,keyasint" json:"index"`
}

// Proof is a receipt of correct execution: the ordered segments of the proof
// chain plus the journal of public outputs committed by the program.
type Proof struct {
	Segments []Segment `cbor:"1,keyasint" json:"segments"`
	Journal  []byte    `cbor:"2,keyasint" json:"journal"`
}

// Marshal returns the wire encoding of the proof.
func (p Proof) Marshal() ([]byte, error) {
	return encMode.Marshal(p)
}

// UnmarshalProof decodes proof wire bytes. Any decoding problem is reported as
// ErrProofInvalid.
func UnmarshalProof(bz []byte) (Proof, error) {
	var p Proof
	if len(bz) == 0 {
		return p, ErrProofInvalid.Wrap("empty proof")
	}
	if err := decMode.Unmarshal(bz, &p); err != nil {
		return Proof{}, ErrProofInvalid.Wrap(err.Error())
	}
	return p, nil
}

// ValidateBasic checks the proof shape without verifying it.
func (p Proof) ValidateBasic() error {
	if len(p.Segments) == 0 {
		return ErrProofInvalid.Wrap("proof has no segments")
	}
	for i, seg := range p.Segments {
		if len(seg.Seal) == 0 {
			return ErrProofInvalid.Wrapf("segment %d has an empty seal", i)
		}
	}
	return nil
}

// ProofRecord is the stored outcome of a successful verification.
type ProofRecord struct {
	Proof  Proof  `cbor:"1,keyasint" json:"proof"`
	Prover string `cbor:"2,keyasint" json:"prover"`
	Height int64  `cbor:"3,keyasint" json:"height"`
}
