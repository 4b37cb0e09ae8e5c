package policy

import "context"

// StrictPolicy makes exactly one attempt per operation.
//
// The first failure of any chunk is returned unchanged, which rejects the
// enclosing window and aborts the artifact transfer.
type StrictPolicy struct {
	rec statsRecorder
}

// NewStrict creates a new strict policy.
func NewStrict() *StrictPolicy {
	return &StrictPolicy{}
}

// Do runs op once. A context that is already done short-circuits op.
func (p *StrictPolicy) Do(ctx context.Context, op func() error) error {
	if err := ctx.Err(); err != nil {
		p.rec.incFailures()
		return err
	}

	p.rec.incAttempt(false)
	if err := op(); err != nil {
		p.rec.incFailures()
		return err
	}
	return nil
}

// Name returns "strict".
func (p *StrictPolicy) Name() string { return NameStrict }

// Stats returns a snapshot of attempts and failures.
func (p *StrictPolicy) Stats() Stats { return p.rec.snapshot() }

var _ Retry = (*StrictPolicy)(nil)
