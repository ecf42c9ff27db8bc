package delivery

type StepState string

const (
	StepPassed  StepState = "passed"
	StepActive  StepState = "active"
	StepPending StepState = "pending"
)

type Step struct {
	Status Status    `json:"status"`
	Label  string    `json:"label"`
	State  StepState `json:"state"`
	Detail string    `json:"detail,omitempty"`
}

// Timeline renders every step relative to current. Steps before it are
// passed, current is active and carries zone, later steps are pending. An
// unknown status leaves every step pending.
func Timeline(current Status, zone string) []Step {
	rank := current.Rank()
	steps := make([]Step, len(Steps))
	for i, st := range Steps {
		step := Step{Status: st, Label: st.Label(), State: StepPending}
		switch {
		case rank < 0:
		case i < rank:
			step.State = StepPassed
		case i == rank:
			step.State = StepActive
			step.Detail = zone
		}
		steps[i] = step
	}
	return steps
}
