package handler

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
)

// parseID validates a stored-record id and returns its canonical form.
func parseID(field string, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrValidation, field)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s %q is not a valid UUID", domain.ErrValidation, field, raw)
	}
	return id.String(), nil
}

func parseIDs(field string, raw []string) ([]string, error) {
	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		id, err := parseID(field, r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
