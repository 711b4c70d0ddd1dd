package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Checkpoint records watch progress bound to one pool identity: the account
// whose inbound transfers are dispatched and the token pair they are matched
// against. A checkpoint written for one pool is rejected by another, so a
// reused path cannot skip blocks that the new pool never saw.
type Checkpoint struct {
	Account            string `json:"account"`
	Token0             string `json:"token0"`
	Token1             string `json:"token1"`
	LastProcessedBlock uint64 `json:"last_processed_block"`
	UpdatedAt          string `json:"updated_at"`
}

// CheckpointStore persists checkpoints for a fixed pool identity.
type CheckpointStore struct {
	path    string
	enabled bool
	account string
	token0  string
	token1  string
}

func NewCheckpointStore(path string, enabled bool, account common.Address, tokens [2]common.Address) *CheckpointStore {
	return &CheckpointStore{
		path:    path,
		enabled: enabled,
		account: account.Hex(),
		token0:  tokens[0].Hex(),
		token1:  tokens[1].Hex(),
	}
}

func (c *CheckpointStore) Load() (Checkpoint, bool, error) {
	if !c.enabled {
		return Checkpoint{}, false, nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	if cp.Account != c.account || cp.Token0 != c.token0 || cp.Token1 != c.token1 {
		return Checkpoint{}, false, fmt.Errorf(
			"checkpoint %s belongs to account %s tokens %s/%s, not this pool",
			c.path, cp.Account, cp.Token0, cp.Token1,
		)
	}

	return cp, true, nil
}

func (c *CheckpointStore) Save(lastProcessed uint64) error {
	if !c.enabled {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp := Checkpoint{
		Account:            c.account,
		Token0:             c.token0,
		Token1:             c.token1,
		LastProcessedBlock: lastProcessed,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	// write-then-rename so a crash never leaves a half-written file
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}
