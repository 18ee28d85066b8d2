package domain

// CandidateItem is a line item as normalized by the text-generation oracle.
// Prices are always zero at this stage.
type CandidateItem struct {
	ProductName  string  `json:"product_name"`
	Quantity     int     `json:"quantity"`
	PricePerUnit float64 `json:"price_per_unit"`
	TotalPrice   float64 `json:"total_price"`
}

// CandidateOrder is the normalizer output. A nil Timestamp means the oracle
// found none.
type CandidateOrder struct {
	Timestamp  *string         `json:"timestamp"`
	Items      []CandidateItem `json:"items"`
	TotalPrice float64         `json:"total_price"`
}

type ResolvedItem struct {
	ProductID    string  `json:"product_id,omitempty"`
	ProductName  string  `json:"product_name"`
	Quantity     int     `json:"quantity"`
	PricePerUnit float64 `json:"price_per_unit"`
	TotalPrice   float64 `json:"total_price"`
}

type ValidatedOrder struct {
	UserID     string         `json:"user_id"`
	Timestamp  string         `json:"timestamp"`
	Items      []ResolvedItem `json:"items"`
	TotalPrice float64        `json:"total_price"`
}

// MatchDecision records the nearest catalog neighbor found for one candidate item.
type MatchDecision struct {
	CandidateName string  `json:"candidate_name"`
	Row           int     `json:"row"`
	Distance      float64 `json:"distance"`
	Accepted      bool    `json:"accepted"`
}

// Resolution is a validated order plus what happened while producing it.
// Degraded is set when no catalog index was available and items passed through.
type Resolution struct {
	Order    ValidatedOrder  `json:"order"`
	Resolved int             `json:"resolved"`
	Rejected int             `json:"rejected"`
	Degraded bool            `json:"degraded"`
	Matches  []MatchDecision `json:"matches,omitempty"`
}

type ReceiptValidatedEvent struct {
	ReceiptID string         `json:"receipt_id"`
	Order     ValidatedOrder `json:"order"`
	Degraded  bool           `json:"degraded"`
}
