package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncMode int

const (
	modeCode jsoncMode = iota
	modeString
	modeLineComment
	modeBlockComment
)

// normalizeJSONC blanks comments and trailing commas with spaces. Every byte
// keeps its offset, so decoder positions still point into the original text.
func normalizeJSONC(content string) (string, error) {
	out := []byte(content)
	mode := modeCode
	pendingComma := -1

	for i := 0; i < len(out); i++ {
		ch := out[i]
		switch mode {
		case modeString:
			switch ch {
			case '\\':
				i++
			case '"':
				mode = modeCode
			}

		case modeLineComment:
			if ch == '\n' || ch == '\r' {
				mode = modeCode
			} else {
				out[i] = ' '
			}

		case modeBlockComment:
			if ch == '*' && i+1 < len(out) && out[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				mode = modeCode
			} else if ch != '\n' && ch != '\r' && ch != '\t' {
				out[i] = ' '
			}

		case modeCode:
			switch {
			case ch == '/' && i+1 < len(out) && out[i+1] == '/':
				out[i], out[i+1] = ' ', ' '
				i++
				mode = modeLineComment
			case ch == '/' && i+1 < len(out) && out[i+1] == '*':
				out[i], out[i+1] = ' ', ' '
				i++
				mode = modeBlockComment
			case isJSONWhitespace(ch):
			case ch == '}' || ch == ']':
				if pendingComma >= 0 {
					out[pendingComma] = ' '
				}
				pendingComma = -1
			case ch == ',':
				pendingComma = i
			default:
				pendingComma = -1
				if ch == '"' {
					mode = modeString
				}
			}
		}
	}

	if mode == modeBlockComment {
		return "", errors.New("unterminated block comment in JSONC")
	}
	return string(out), nil
}

func isJSONWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\r' || ch == '\t'
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra json.RawMessage
	switch err := decoder.Decode(&extra); {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	}
	return errors.New("multiple JSON values are not allowed")
}

// wrapJSONDecodeError prefixes syntax and type errors with their source position.
func wrapJSONDecodeError(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// offsetToLineCol maps a decoder offset, which points just past the offending
// byte, to a 1-based line and column.
func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	end := max(min(int(offset), len(content))-1, 0)
	prefix := content[:end]
	return strings.Count(prefix, "\n") + 1, end - strings.LastIndex(prefix, "\n")
}
