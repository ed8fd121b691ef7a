package keeper

import (
	"context"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofmarket/prover/x/prover/types"
)

// GetSequence returns the last sequence accepted from addr, zero if none.
func (k Keeper) GetSequence(ctx context.Context, addr sdk.AccAddress) uint64 {
	return types.DecodeSequence(k.getStore(ctx).Get(types.SequenceKey(addr)))
}

// SetSequence stores the last accepted sequence of addr.
func (k Keeper) SetSequence(ctx context.Context, addr sdk.AccAddress, sequence uint64) {
	k.getStore(ctx).Set(types.SequenceKey(addr), types.EncodeSequence(sequence))
}

// consumeSequence accepts sequence only if it is strictly greater than the
// last one accepted from addr, then records it. Gaps are allowed.
func (k Keeper) consumeSequence(ctx context.Context, addr sdk.AccAddress, sequence uint64) error {
	last := k.GetSequence(ctx, addr)
	if sequence <= last {
		return types.ErrInvalidSequence.Wrapf("sequence %d must exceed %d for %s", sequence, last, addr)
	}
	k.SetSequence(ctx, addr, sequence)
	return nil
}

// IterateSequences iterates over all recorded signer sequences.
func (k Keeper) IterateSequences(ctx context.Context, cb func(addr sdk.AccAddress, sequence uint64) (stop bool)) {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), types.SequenceKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		// key: prefix | len | address
		key := iterator.Key()[len(types.SequenceKeyPrefix):]
		if len(key) == 0 || int(key[0]) != len(key)-1 {
			continue
		}
		if cb(sdk.AccAddress(key[1:]), types.DecodeSequence(iterator.Value())) {
			break
		}
	}
}
