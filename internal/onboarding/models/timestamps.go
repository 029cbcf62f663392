package models

import (
	"strconv"
	"strings"
	"time"

	dErrors "onramp/pkg/domain-errors"
)

// ParseTimestamp normalizes the timestamp shapes clients send (RFC3339,
// date-only, unix epoch seconds) into one canonical time.Time. All
// normalization happens here at the request boundary; evaluation logic only
// ever sees time.Time values.
func ParseTimestamp(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}

	if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.Unix(epoch, 0).UTC()
		return &t, nil
	}

	return nil, dErrors.New(dErrors.CodeValidation, "unrecognized timestamp format: "+raw)
}
