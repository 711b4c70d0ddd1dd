package model

// Swap attempt lifecycle. A record is written as StatusQuoted when the
// external transfer is issued and finalized to exactly one of the other two.
const (
	StatusQuoted     = "quoted"
	StatusCommitted  = "committed"
	StatusRolledBack = "rolled_back"
)

// SwapRecord journals one swap attempt. Amounts are decimal strings.
type SwapRecord struct {
	ID        string `json:"id"`
	Initiator string `json:"initiator"`
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Status    string `json:"status"`
	QuotedAt  string `json:"quoted_at"`
	SettledAt string `json:"settled_at,omitempty"`
}
