// Package flow defines the collaborator seams the turn interpreter depends on.
package flow

import (
	"context"

	"github.com/ruthvika-mohan/loan-status-agent/internal/models"
)

// IntentRouter maps a free-text utterance onto one of a closed set of
// labels. It returns the matched label, or an empty string when the
// utterance cannot be classified. Any returned value that is not one of the
// candidate labels is treated by the interpreter as unclassifiable.
type IntentRouter interface {
	Route(ctx context.Context, utterance string, labels []string) (string, error)
}

// Responder produces caller-facing text for the moments the flow graph
// cannot script: invalid input redirects and call-closing goodbyes. All
// methods return non-empty text on success.
type Responder interface {
	// Redirect acknowledges off-script input and steers the caller back to
	// phone number collection.
	Redirect(ctx context.Context, utterance string, sess models.Session) (string, error)

	// Goodbye closes the call after the caller declined an SMS update.
	Goodbye(ctx context.Context, sess models.Session) (string, error)

	// GoodbyeAfterSMS closes the call after the status SMS was sent.
	GoodbyeAfterSMS(ctx context.Context, sess models.Session) (string, error)
}

// SMSSender delivers the loan status text message requested during a call.
type SMSSender interface {
	SendStatusSMS(ctx context.Context, to, status string) error
}
