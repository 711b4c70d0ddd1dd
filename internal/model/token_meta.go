package model

// TokenMeta is the display metadata reported by a token contract.
type TokenMeta struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}
