package model

// PoolState is a snapshot of the pool's accounted reserves for storage.
// Balances are decimal strings since they may exceed 64 bits.
type PoolState struct {
	Owner     string `json:"owner"`
	Token0    string `json:"token0"`
	Token1    string `json:"token1"`
	Balance0  string `json:"balance0"`
	Balance1  string `json:"balance1"`
	SnappedAt string `json:"snapped_at"`
}
