package policy

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Blackout is a date range during which leave requests are refused, e.g. a
// release freeze or inventory period.
type Blackout struct {
	Name string    `yaml:"name"`
	From time.Time `yaml:"from"`
	To   time.Time `yaml:"to"`
}

// Policy holds the acceptance rules applied when a leave request is
// submitted. The zero value is fully permissive.
type Policy struct {
	MinNoticeDays        int        `yaml:"min_notice_days"`
	MaxConsecutiveDays   int        `yaml:"max_consecutive_days"`
	AllowNegativeBalance bool       `yaml:"allow_negative_balance"`
	Blackouts            []Blackout `yaml:"blackouts"`
}

// Request carries the facts about one submission that the rules inspect.
type Request struct {
	Start       time.Time
	End         time.Time
	Days        int // business days requested
	Available   int // days left in the caller's allowance
	SubmittedAt time.Time
}

type Evaluation struct {
	Acceptable bool
	Violations []string
}

// Default returns a permissive policy.
func Default() *Policy {
	return &Policy{}
}

// Load reads a policy file. A missing file yields the permissive default;
// a malformed file is an error.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	var pol Policy
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return nil, fmt.Errorf("parsing policy file: %w", err)
	}
	return &pol, nil
}

// Evaluate applies every rule to the request and collects violations.
func Evaluate(req *Request, pol *Policy) *Evaluation {
	eval := &Evaluation{
		Acceptable: true,
		Violations: []string{},
	}

	if pol.MinNoticeDays > 0 {
		earliest := req.SubmittedAt.AddDate(0, 0, pol.MinNoticeDays)
		if req.Start.Before(earliest) {
			eval.fail(fmt.Sprintf("requires %d days notice", pol.MinNoticeDays))
		}
	}

	if pol.MaxConsecutiveDays > 0 && req.Days > pol.MaxConsecutiveDays {
		eval.fail(fmt.Sprintf("exceeds %d consecutive days", pol.MaxConsecutiveDays))
	}

	if !pol.AllowNegativeBalance && req.Days > req.Available {
		eval.fail("insufficient balance")
	}

	for _, b := range pol.Blackouts {
		if !req.Start.After(b.To) && !req.End.Before(b.From) {
			eval.fail(fmt.Sprintf("overlaps blackout period %q", b.Name))
		}
	}

	return eval
}

func (e *Evaluation) fail(reason string) {
	e.Acceptable = false
	e.Violations = append(e.Violations, reason)
}

func (e *Evaluation) String() string {
	if e.Acceptable {
		return "acceptable"
	}
	return fmt.Sprintf("rejected: %v", e.Violations)
}
