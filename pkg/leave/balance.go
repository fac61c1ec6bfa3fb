package leave

// Balance summarizes one user's standing against a leave type for a
// calendar year. Used counts approved business days; Pending counts days in
// requests still awaiting a decision.
type Balance struct {
	Allowance int `json:"allowance"`
	Used      int `json:"used"`
	Pending   int `json:"pending"`
}

// Available returns the days still open for approval. Pending days are not
// subtracted; they are surfaced separately so approvers can see exposure.
func (b Balance) Available() int {
	return b.Allowance - b.Used
}

// Covers reports whether a request for the given number of days fits the
// remaining allowance.
func (b Balance) Covers(days int) bool {
	return days <= b.Available()
}
