package llm

import "encoding/json"

const (
	VerdictValid   = "valid"
	VerdictInvalid = "invalid"
)

// ValidationOutcome is the auditor's verdict. Skipped marks a verdict that
// defaulted to valid because the audit could not run.
type ValidationOutcome struct {
	Status     string   `json:"status"`
	Reasons    []string `json:"reasons"`
	Skipped    bool     `json:"skipped,omitempty"`
	SkipReason string   `json:"skip_reason,omitempty"`
}

// SkippedOutcome is the fail-open verdict.
func SkippedOutcome(reason string) ValidationOutcome {
	return ValidationOutcome{
		Status:     VerdictValid,
		Reasons:    []string{},
		Skipped:    true,
		SkipReason: reason,
	}
}

func (v ValidationOutcome) Valid() bool { return v.Status == VerdictValid }

func (v ValidationOutcome) MarshalJSON() ([]byte, error) {
	type plain ValidationOutcome
	if v.Reasons == nil {
		v.Reasons = []string{}
	}
	return json.Marshal(plain(v))
}
