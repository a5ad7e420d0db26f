package entity

// QuotaSnapshot is the account allowance as reported by the billing
// collaborator. Read-only input to admission.
type QuotaSnapshot struct {
	Tier      string `json:"tier"`
	Allowance int    `json:"allowance"`
	Consumed  int    `json:"consumed"`
}

// Remaining derives the usable allowance, floored at zero.
func (q QuotaSnapshot) Remaining() int {
	r := q.Allowance - q.Consumed
	if r < 0 {
		return 0
	}
	return r
}
