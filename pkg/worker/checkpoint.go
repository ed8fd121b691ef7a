package worker

import (
	"encoding/binary"
	"fmt"

	dbm "github.com/cosmos/cosmos-db"
)

var checkpointKey = []byte("last_height")

// Checkpoints persists the last dispatched block height in a cosmos-db
// database.
type Checkpoints struct {
	db dbm.DB
}

var _ CheckpointStore = (*Checkpoints)(nil)

// OpenCheckpoints opens the goleveldb checkpoint database under dir.
func OpenCheckpoints(dir string) (*Checkpoints, error) {
	db, err := dbm.NewDB("worker", dbm.GoLevelDBBackend, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint db: %w", err)
	}
	return &Checkpoints{db: db}, nil
}

// NewMemCheckpoints returns checkpoints kept in memory.
func NewMemCheckpoints() *Checkpoints {
	return &Checkpoints{db: dbm.NewMemDB()}
}

// Load returns the last saved height, zero if none was saved.
func (c *Checkpoints) Load() (int64, error) {
	bz, err := c.db.Get(checkpointKey)
	if err != nil {
		return 0, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if bz == nil {
		return 0, nil
	}
	if len(bz) != 8 {
		return 0, fmt.Errorf("corrupt checkpoint of %d bytes", len(bz))
	}
	return int64(binary.BigEndian.Uint64(bz)), nil
}

// Save records height durably.
func (c *Checkpoints) Save(height int64) error {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, uint64(height))
	if err := c.db.SetSync(checkpointKey, bz); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *Checkpoints) Close() error {
	return c.db.Close()
}

// ResumeHeight returns the height a feed should start from: override when
// positive, else the block after the last checkpoint. Zero means no
// checkpoint exists and the feed starts at the current tip.
func ResumeHeight(store CheckpointStore, override int64) (int64, error) {
	if override > 0 {
		return override, nil
	}
	if store == nil {
		return 0, nil
	}
	last, err := store.Load()
	if err != nil {
		return 0, err
	}
	if last == 0 {
		return 0, nil
	}
	return last + 1, nil
}
