package config

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// argvScanner splits a command line into words with shell-style quoting:
// single quotes are literal, double quotes honour \" and \\, and a bare
// backslash escapes the next rune. A leading "~" or "~/" expands to $HOME.
type argvScanner struct {
	input string
	argv  []string
	word  strings.Builder
	// inWord is set once a word has started, so "" yields an empty argument.
	inWord bool
}

func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || input[0] == '#' {
		return nil, nil
	}

	s := &argvScanner{input: input}
	if err := s.scan(); err != nil {
		return nil, err
	}
	return s.argv, nil
}

func (s *argvScanner) scan() error {
	runes := []rune(s.input)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			s.endWord()
		case r == '\\':
			i++
			if i == len(runes) {
				return fmt.Errorf("unterminated escape sequence in command: %q", s.input)
			}
			s.add(runes[i])
		case r == '\'':
			end := indexRune(runes, i+1, '\'')
			if end < 0 {
				return fmt.Errorf("unterminated quote in command: %q", s.input)
			}
			s.inWord = true
			s.word.WriteString(string(runes[i+1 : end]))
			i = end
		case r == '"':
			next, err := s.doubleQuoted(runes, i+1)
			if err != nil {
				return err
			}
			i = next
		case r == '~' && !s.inWord && tildeEnds(runes, i+1):
			s.inWord = true
			s.word.WriteString(homeDir())
		default:
			s.add(r)
		}
	}
	s.endWord()
	return nil
}

// doubleQuoted consumes a double-quoted span starting after the opening quote
// and returns the index of the closing quote.
func (s *argvScanner) doubleQuoted(runes []rune, start int) (int, error) {
	s.inWord = true
	for i := start; i < len(runes); i++ {
		switch r := runes[i]; {
		case r == '"':
			return i, nil
		case r == '\\' && i+1 < len(runes) && (runes[i+1] == '"' || runes[i+1] == '\\'):
			i++
			s.word.WriteRune(runes[i])
		default:
			s.word.WriteRune(r)
		}
	}
	return 0, fmt.Errorf("unterminated quote in command: %q", s.input)
}

func (s *argvScanner) add(r rune) {
	s.inWord = true
	s.word.WriteRune(r)
}

func (s *argvScanner) endWord() {
	if !s.inWord {
		return
	}
	s.argv = append(s.argv, s.word.String())
	s.word.Reset()
	s.inWord = false
}

func indexRune(runes []rune, from int, target rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

func tildeEnds(runes []rune, next int) bool {
	return next == len(runes) || runes[next] == '/' || unicode.IsSpace(runes[next])
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "~"
}

func mustParseArgv(input string) []string {
	argv, err := parseArgv(input)
	if err != nil {
		panic(err)
	}
	return argv
}
