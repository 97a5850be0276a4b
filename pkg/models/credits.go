package models

// CreditBalance is read-only from the client's perspective. Remaining is
// server-computed; the client never derives it from Total and Used.
type CreditBalance struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}
