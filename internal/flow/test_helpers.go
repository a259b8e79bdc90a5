package flow

import (
	"context"

	"github.com/ruthvika-mohan/loan-status-agent/internal/models"
)

// Shared test doubles for the flow package. Kept in a non-test file so
// interpreter, graph, and render tests can all use them.

// stubRouter routes by a fixed answer or a custom function.
type stubRouter struct {
	label  string
	err    error
	fn     func(utterance string, labels []string) (string, error)
	calls  int
	lastUt string
	lastLb []string
}

func (r *stubRouter) Route(ctx context.Context, utterance string, labels []string) (string, error) {
	r.calls++
	r.lastUt = utterance
	r.lastLb = append([]string(nil), labels...)
	if r.fn != nil {
		return r.fn(utterance, labels)
	}
	return r.label, r.err
}

// stubResponder returns canned texts for the generation seams.
type stubResponder struct {
	redirectText    string
	goodbyeText     string
	goodbyeSMSText  string
	redirectErr     error
	goodbyeErr      error
	goodbyeSMSErr   error
	redirectCalls   int
	goodbyeCalls    int
	goodbyeSMSCalls int
}

func (r *stubResponder) Redirect(ctx context.Context, utterance string, sess models.Session) (string, error) {
	r.redirectCalls++
	return r.redirectText, r.redirectErr
}

func (r *stubResponder) Goodbye(ctx context.Context, sess models.Session) (string, error) {
	r.goodbyeCalls++
	return r.goodbyeText, r.goodbyeErr
}

func (r *stubResponder) GoodbyeAfterSMS(ctx context.Context, sess models.Session) (string, error) {
	r.goodbyeSMSCalls++
	return r.goodbyeSMSText, r.goodbyeSMSErr
}

// stubSMS records the last delivery request.
type stubSMS struct {
	err    error
	calls  int
	to     string
	status string
}

func (s *stubSMS) SendStatusSMS(ctx context.Context, to, status string) error {
	s.calls++
	s.to = to
	s.status = status
	return s.err
}
