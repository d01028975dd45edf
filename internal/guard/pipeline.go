// Package guard – validator pipeline
//
// This file implements the ordered pre-write pipeline: named validators
// executed strictly in registration order before any side-effecting call,
// each able to short-circuit the rest with a reasoned rejection. The
// services register throttle then uniqueness, preserving the
// throttle → uniqueness → dedup ordering without relying on event
// propagation mechanics.
package guard

// Validator is a single named pre-write check. Check returns nil to accept
// or a sentinel error to reject.
type Validator struct {
	Name  string
	Check func() error
}

// Rejection names the validator that stopped a submission and the error it
// returned. Key holds the normalized business key on uniqueness rejections
// so the duplicate-key alert can name the conflicting value.
type Rejection struct {
	Validator string
	Err       error
	Key       string
}

// Error implements the error interface; the underlying sentinel remains
// reachable through Unwrap for errors.Is checks.
func (r *Rejection) Error() string {
	return r.Validator + ": " + r.Err.Error()
}

// Unwrap returns the validator's sentinel error.
func (r *Rejection) Unwrap() error { return r.Err }

// Pipeline is an ordered list of validators.
type Pipeline struct {
	validators []Validator
}

// NewPipeline builds a pipeline running the given validators in order.
func NewPipeline(validators ...Validator) *Pipeline {
	return &Pipeline{validators: validators}
}

// Run executes validators in order and returns the first rejection, or nil
// when every validator accepts. Validators after a rejection are not
// evaluated.
func (p *Pipeline) Run() *Rejection {
	for _, v := range p.validators {
		if err := v.Check(); err != nil {
			return &Rejection{Validator: v.Name, Err: err}
		}
	}
	return nil
}
