package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"swapLedger/internal/model"
)

// JsonlJournal appends swap records and pool snapshots as JSON lines, one
// file per record kind. Final swap statuses appear as a second line for the
// same ID.
type JsonlJournal struct {
	swapPath  string
	statePath string
	mu        sync.Mutex
}

func NewJsonlJournal(swapPath, statePath string) *JsonlJournal {
	return &JsonlJournal{swapPath: swapPath, statePath: statePath}
}

// PutSwap appends a swap record.
func (j *JsonlJournal) PutSwap(rec model.SwapRecord) error {
	return j.appendLine(j.swapPath, rec)
}

// PutPoolState appends a pool snapshot.
func (j *JsonlJournal) PutPoolState(state model.PoolState) error {
	return j.appendLine(j.statePath, state)
}

func (j *JsonlJournal) appendLine(path string, record any) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write journal record: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}

	return nil
}
