// Package loans defines the loan record lookup contract and a simulated
// backend used when no real loan system is wired in.
package loans

import (
	"context"
	"log/slog"

	"github.com/ruthvika-mohan/loan-status-agent/internal/models"
)

// Lookup maps a phone number to a loan status code. A missing record is
// reported as models.StatusNotFound, never as an error; errors are reserved
// for backend failures.
type Lookup interface {
	Status(ctx context.Context, phone string) (string, error)
}

// StaticLookup is an in-memory Lookup seeded with fixed records. It stands in
// for the real loan system in local runs and tests.
type StaticLookup struct {
	records map[string]string
}

// NewStaticLookup creates a StaticLookup with the default simulation records.
func NewStaticLookup() *StaticLookup {
	return &StaticLookup{records: map[string]string{
		"9999999999": models.StatusUnderReview,
		"8888888888": models.StatusApproved,
	}}
}

// NewStaticLookupWithRecords creates a StaticLookup over the given records.
func NewStaticLookupWithRecords(records map[string]string) *StaticLookup {
	copied := make(map[string]string, len(records))
	for phone, status := range records {
		copied[phone] = status
	}
	return &StaticLookup{records: copied}
}

// Status returns the status code for phone, or models.StatusNotFound.
func (l *StaticLookup) Status(ctx context.Context, phone string) (string, error) {
	status, ok := l.records[phone]
	if !ok {
		slog.Debug("StaticLookup.Status: no record", "phone", phone)
		return models.StatusNotFound, nil
	}
	slog.Debug("StaticLookup.Status: record found", "phone", phone, "status", status)
	return status, nil
}
