package config

import (
	"errors"
	"strings"
)

var errNotObject = errors.New("config must be a JSONC object")

// Parse overlays JSONC content on base and validates the merged result. Blank
// content keeps base unchanged. A leading UTF-8 byte order mark is ignored.
func Parse(content string, base Config) (Config, []Warning, error) {
	content = strings.TrimPrefix(content, "\ufeff")

	switch body := strings.TrimSpace(content); {
	case body == "":
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	case body[0] != '{':
		return Config{}, nil, errNotObject
	default:
		return parseJSONC(content, base)
	}
}
