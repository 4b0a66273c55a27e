package domain

import "time"

// TransferCurrency is the only currency transfers are denominated in
const TransferCurrency = "ETH"

// Transfer is an append-only record of an ownership change
type Transfer struct {
	ID            string    `json:"id"`
	LandID        string    `json:"landId"`
	LandTitle     string    `json:"landTitle"`
	FromUserID    string    `json:"fromUserId"`
	FromUserName  string    `json:"fromUserName"`
	FromUserEmail string    `json:"fromUserEmail"`
	ToUserID      string    `json:"toUserId"`
	ToUserName    string    `json:"toUserName"`
	ToUserEmail   string    `json:"toUserEmail"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Notes         string    `json:"notes,omitempty"`
	TransferredAt time.Time `json:"transferredAt"`
}

// Involves reports whether the user is sender or recipient
func (t *Transfer) Involves(userID string) bool {
	return t.FromUserID == userID || t.ToUserID == userID
}
