package syncsdk

import "context"

type retryState int

const (
	stateAttempting retryState = iota
	stateSucceeded
	stateFailedRetryable
	stateFailedFinal
)

func (s retryState) String() string {
	switch s {
	case stateAttempting:
		return "attempting"
	case stateSucceeded:
		return "succeeded"
	case stateFailedRetryable:
		return "failed_retryable"
	case stateFailedFinal:
		return "failed_final"
	}
	return "unknown"
}

// retryMachine drives a transfer through
//
//	Attempting -> Succeeded
//	Attempting -> FailedRetryable -> Attempting
//	Attempting -> FailedFinal
//
// allowing at most maxRetries re-attempts, never more than MaxRetryLimit.
// It knows nothing about the transfer itself.
type retryMachine struct {
	state      retryState
	attempts   int
	maxRetries int
	lastErr    error
	retryable  func(error) bool
}

func newRetryMachine(maxRetries int) *retryMachine {
	maxRetries = max(0, min(maxRetries, MaxRetryLimit))
	return &retryMachine{state: stateAttempting, maxRetries: maxRetries, retryable: IsRetryable}
}

// Next reports whether another attempt should run and counts it
func (m *retryMachine) Next(ctx context.Context) bool {
	if m.state == stateFailedRetryable {
		if ctx.Err() != nil {
			m.state = stateFailedFinal
			return false
		}
		m.state = stateAttempting
	}
	if m.state != stateAttempting {
		return false
	}
	m.attempts++
	return true
}

// Record moves the machine out of Attempting based on the attempt's outcome
func (m *retryMachine) Record(err error) retryState {
	if m.state != stateAttempting {
		return m.state
	}
	switch {
	case err == nil:
		m.state = stateSucceeded
		m.lastErr = nil
	case m.retryable(err) && m.attempts <= m.maxRetries:
		m.state = stateFailedRetryable
		m.lastErr = err
	default:
		m.state = stateFailedFinal
		m.lastErr = err
	}
	return m.state
}

func (m *retryMachine) State() retryState { return m.state }
func (m *retryMachine) Attempts() int     { return m.attempts }

// Err is the error of the last attempt once the machine is final
func (m *retryMachine) Err() error {
	if m.state == stateSucceeded {
		return nil
	}
	return m.lastErr
}
