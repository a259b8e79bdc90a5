// Package models defines session state structures for loan status calls.
package models

// Session holds the conversational state for one logical call. It is created
// lazily on first contact, lives in process memory only, and is exclusively
// owned by one turn at a time (the session store serializes access).
type Session struct {
	// State is the current flow node identifier. An empty or unknown value
	// is normalized to the flow's start node on the next turn.
	State string `json:"state,omitempty"`

	// Ended is a one-way latch: once true, every later turn gets the fixed
	// call-ended reply. Only an explicit session reset clears it.
	Ended bool `json:"ended,omitempty"`

	// Greeted guards the one-time start-state greeting.
	Greeted bool `json:"greeted,omitempty"`

	// CallerID is the synthetic 10-digit number assigned on first contact,
	// stable for the session's lifetime.
	CallerID string `json:"caller_id,omitempty"`

	// Phone is the candidate or verified phone number collected from the
	// caller, read by lookup actions.
	Phone string `json:"phone,omitempty"`

	// LoanStatus is the status code from the most recent successful lookup.
	LoanStatus string `json:"loan_status,omitempty"`

	// LastPromptedState tracks which decision node already emitted its
	// prompt, so the prompt is shown exactly once per entry into the node.
	LastPromptedState string `json:"last_prompted_state,omitempty"`
}
