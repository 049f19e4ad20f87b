// Package registry answers whether a company is an approved staffing company
// (godkjent bemanningsforetak).
package registry

import (
	"context"
	"fmt"
	"strings"
)

// ReferenceApprovedCompany is the single company the static lookup reports
// as approved.
const ReferenceApprovedCompany = "Qwert AS"

// StatusLookup resolves a company's approval status.
type StatusLookup interface {
	Lookup(ctx context.Context, companyName string) (bool, error)
}

// LookupError reports a failed status lookup.
type LookupError struct {
	Company string
	Err     error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("status lookup for %q failed: %v", e.Company, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// StaticLookup approves an exact, fixed list of company names.
type StaticLookup struct {
	approved map[string]struct{}
}

// NewStaticLookup returns a lookup approving the given names. Without
// arguments only ReferenceApprovedCompany is approved.
func NewStaticLookup(names ...string) *StaticLookup {
	if len(names) == 0 {
		names = []string{ReferenceApprovedCompany}
	}
	approved := make(map[string]struct{}, len(names))
	for _, n := range names {
		approved[n] = struct{}{}
	}
	return &StaticLookup{approved: approved}
}

func (s *StaticLookup) Lookup(ctx context.Context, companyName string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := s.approved[companyName]
	return ok, nil
}

// NormalizeCompanyName folds case and collapses whitespace so that register
// entries and user input compare equal.
func NormalizeCompanyName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
