// Package models defines the core data structures for the loan status agent.
//
// It includes the per-call session record, loan status codes, API
// request/response types, and the shared JSON response envelope.
package models

import (
	"errors"
	"time"
)

// Loan status codes returned by the lookup backend. StatusNotFound is the
// not-found sentinel, not an error: flows route it via on_failure.
const (
	StatusApproved    = "APPROVED"
	StatusUnderReview = "UNDER_REVIEW"
	StatusRejected    = "REJECTED"
	StatusNotFound    = "NOT_FOUND"
	StatusUnknown     = "UNKNOWN"
)

// CallerIDDigits is the length of the synthetic caller id assigned to each
// session on first contact.
const CallerIDDigits = 10

// Error variables for better error handling and testability
var (
	ErrEmptySessionID = errors.New("session_id cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
)

// MaxMessageLength defines the maximum accepted length for a caller utterance.
const MaxMessageLength = 1024

// ChatRequest is one caller turn submitted to POST /chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Validate performs validation on a ChatRequest structure.
func (r *ChatRequest) Validate() error {
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ChatResponse is the interpreter's reply for one turn.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
	Ended     bool   `json:"ended"`
	State     string `json:"state,omitempty"` // current node, useful when debugging flows
}

// ResetRequest asks the service to discard a session's state.
type ResetRequest struct {
	SessionID string `json:"session_id"`
}

// ResetResponse reports the outcome of a reset.
type ResetResponse struct {
	Status  string `json:"status"` // "reset" or "not_found"
	Message string `json:"message"`
}

// TurnRecord is one recorded turn of a call transcript.
type TurnRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Utterance string    `json:"utterance"`
	Reply     string    `json:"reply"`
	State     string    `json:"state"`
	Ended     bool      `json:"ended"`
	Time      time.Time `json:"time"`
}

// API Response types for consistent JSON responses

// APIStatus represents the status field of an API response.
type APIStatus string

const (
	// APIStatusOK indicates a successful API response.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates a failed API response.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
