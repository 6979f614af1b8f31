package models

import "time"

// CheckRequest is the body of POST /api/check. Exactly one of Item or
// Image should be set; Image is a base64-encoded photo of the object.
type CheckRequest struct {
	Item  string `json:"item,omitempty"`
	Image string `json:"image,omitempty"`
}

// CheckResponse is the wire response for a safety check. The three field
// names are a compatibility contract with the client UI.
type CheckResponse struct {
	Result     string   `json:"result"`
	RiskScore  int      `json:"riskScore"`
	References []string `json:"references"`
}

// Assessment is a parsed reasoner reply: the prose verdict, the extracted
// risk score, and any cited references. This is what the cache stores.
type Assessment struct {
	Item       string   `json:"item"`
	Result     string   `json:"result"`
	RiskScore  int      `json:"risk_score"`
	References []string `json:"references"`
}

// Response converts an Assessment to the client-facing payload.
func (a Assessment) Response() CheckResponse {
	refs := a.References
	if refs == nil {
		refs = []string{}
	}
	return CheckResponse{Result: a.Result, RiskScore: a.RiskScore, References: refs}
}

// HistoryEntry is one past check owned by a user record.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	Item      string    `json:"item"`
	RiskScore int       `json:"risk_score"`
	IsImage   bool      `json:"is_image"`
	CreatedAt time.Time `json:"created_at"`
}
