package types

// Record is one persisted history entry.
type Record struct {
	ID      uint64 `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Content string `json:"content"`
	Read    bool   `json:"read"`
}
