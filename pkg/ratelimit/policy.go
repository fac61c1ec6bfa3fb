package ratelimit

import "time"

// Category names a group of endpoints sharing one rate limit policy.
type Category string

const (
	CategoryCreation Category = "creation"
	CategoryApproval Category = "approval"
	CategoryRead     Category = "read"
	CategoryUpload   Category = "upload"
	CategoryAdmin    Category = "admin"
)

// Policy is an immutable window/cap pair. Policies are defined at process
// start and never mutated afterwards.
type Policy struct {
	Window      time.Duration
	MaxRequests int
}

// Policies maps endpoint categories to their policy.
type Policies map[Category]Policy

// DefaultPolicies returns the stock policy table: request submission is
// capped tightly, reads generously, uploads over a longer horizon.
func DefaultPolicies() Policies {
	return Policies{
		CategoryCreation: {Window: time.Minute, MaxRequests: 10},
		CategoryApproval: {Window: time.Minute, MaxRequests: 30},
		CategoryRead:     {Window: time.Minute, MaxRequests: 100},
		CategoryUpload:   {Window: 5 * time.Minute, MaxRequests: 20},
		CategoryAdmin:    {Window: time.Minute, MaxRequests: 60},
	}
}

// maxWindow returns the longest window across the table. The janitor uses it
// as the retention horizon so no policy's live entries are ever swept early.
func (p Policies) maxWindow() time.Duration {
	var max time.Duration
	for _, pol := range p {
		if pol.Window > max {
			max = pol.Window
		}
	}
	return max
}
