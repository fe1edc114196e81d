package extractor

import (
	"fmt"
	"regexp"
)

// findRegex returns the first capture group of pattern in body, or the full
// match when the pattern has no groups.
func findRegex(body []byte, pattern string) (string, error) {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid regex %q: %w", pattern, err)
	}

	match := regex.FindSubmatch(body)
	if match == nil {
		return "", fmt.Errorf("regex %q: %w", pattern, ErrNotFound)
	}
	if len(match) > 1 {
		return string(match[1]), nil
	}
	return string(match[0]), nil
}
