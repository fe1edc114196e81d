// Package extractor pulls single values out of response bodies with a JSON
// path or a regular expression.
package extractor

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned when a rule matches nothing.
var ErrNotFound = errors.New("extractor: no match")

// Rule selects one value from a response body. Exactly one of JSONPath or
// Regex is expected.
type Rule struct {
	// JSONPath is a gjson path, optionally $-prefixed (e.g. "$.user.id", "user.id")
	JSONPath string

	// Regex is a pattern whose first capture group, or whole match, is the value
	Regex string
}

// Empty reports whether the rule selects nothing.
func (r Rule) Empty() bool {
	return r.JSONPath == "" && r.Regex == ""
}

// Validate checks that the rule is usable.
func (r Rule) Validate() error {
	if r.JSONPath != "" && r.Regex != "" {
		return errors.New("json path and regex are mutually exclusive")
	}
	if r.Regex != "" {
		if _, err := regexp.Compile(r.Regex); err != nil {
			return fmt.Errorf("invalid regex %q: %w", r.Regex, err)
		}
	}
	return nil
}

// Extract applies r to body. Empty matches count as not found.
func Extract(body []byte, r Rule) (string, error) {
	var (
		value string
		err   error
	)
	switch {
	case r.JSONPath != "":
		value, err = findJSONPath(body, r.JSONPath)
	case r.Regex != "":
		value, err = findRegex(body, r.Regex)
	default:
		return "", errors.New("extractor: empty rule")
	}
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}
