package council

import (
	"fmt"
	"sync"

	"github.com/conclave-ai/conclave/internal/model"
)

// ReviewState is a state of the scrub-review flow
type ReviewState int

const (
	// ReviewIdle: no scrub in flight; a message may be sent directly.
	ReviewIdle ReviewState = iota
	// ReviewScrubbing: a Phase 0 call is in flight.
	ReviewScrubbing
	// ReviewPending: a scrub result awaits the user's accept/reject choice.
	ReviewPending
)

func (s ReviewState) String() string {
	switch s {
	case ReviewIdle:
		return "idle"
	case ReviewScrubbing:
		return "scrubbing"
	case ReviewPending:
		return "pending_review"
	default:
		return "unknown"
	}
}

// ReviewFlow models the accept / use-original / use-scrubbed user flow as an
// explicit state machine, so illegal states (resolving a review with no
// scrub result) are unrepresentable instead of guarded by ad hoc flags.
type ReviewFlow struct {
	mu     sync.Mutex
	state  ReviewState
	result model.ScrubResult
}

// NewReviewFlow starts in Idle
func NewReviewFlow() *ReviewFlow {
	return &ReviewFlow{state: ReviewIdle}
}

// State returns the current state
func (f *ReviewFlow) State() ReviewState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Begin transitions Idle -> Scrubbing
func (f *ReviewFlow) Begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != ReviewIdle {
		return fmt.Errorf("cannot begin scrub from state %s", f.state)
	}
	f.state = ReviewScrubbing
	return nil
}

// Complete transitions Scrubbing -> PendingReview, recording the result
func (f *ReviewFlow) Complete(result model.ScrubResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != ReviewScrubbing {
		return fmt.Errorf("cannot complete scrub from state %s", f.state)
	}
	f.state = ReviewPending
	f.result = result
	return nil
}

// Abort returns to Idle from Scrubbing (call failure)
func (f *ReviewFlow) Abort() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != ReviewScrubbing {
		return fmt.Errorf("cannot abort scrub from state %s", f.state)
	}
	f.state = ReviewIdle
	f.result = model.ScrubResult{}
	return nil
}

// Resolve consumes the pending result, returning the scrubbed text when
// accepted or the original otherwise, and transitions PendingReview -> Idle.
func (f *ReviewFlow) Resolve(acceptScrubbed bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != ReviewPending {
		return "", fmt.Errorf("no scrub result to resolve in state %s", f.state)
	}
	f.state = ReviewIdle
	result := f.result
	f.result = model.ScrubResult{}
	if acceptScrubbed {
		return result.Scrubbed, nil
	}
	return result.Original, nil
}

// Pending returns the result awaiting review
func (f *ReviewFlow) Pending() (model.ScrubResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != ReviewPending {
		return model.ScrubResult{}, false
	}
	return f.result, true
}
