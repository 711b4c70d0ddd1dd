package storage

import "swapLedger/internal/model"

// Journal records swap attempts and pool snapshots. A swap record is written
// once as quoted and once more with its final status; sinks may append both
// or upsert by ID.
type Journal interface {
	PutSwap(rec model.SwapRecord) error
	PutPoolState(state model.PoolState) error
}
