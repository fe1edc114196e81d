package extractor

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// findJSONPath extracts a value from JSON using gjson with support for $.field and field syntax.
func findJSONPath(body []byte, path string) (string, error) {
	query := path
	if len(query) > 0 && query[0] == '$' {
		if len(query) > 1 && query[1] == '.' {
			query = query[2:]
		} else if len(query) == 1 {
			// Bare "$" means the whole document
			query = "@this"
		}
	}

	result := gjson.GetBytes(body, query)
	if !result.Exists() {
		return "", fmt.Errorf("json path %q: %w", path, ErrNotFound)
	}
	return result.String(), nil
}
