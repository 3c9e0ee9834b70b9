// Package records turns line-oriented text into trie build input.
//
// Each non-blank line that does not start with '#' holds one record:
//
//	key<TAB>value
//
// The key is taken rune by rune as trie symbols. The value is handed to a
// ValueParser. A line without a tab is a key with an empty value.
package records

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strconv"
	"strings"

	"github.com/shruggr/geotrie/triebuilder"
)

// ErrMalformedLine is returned for a line whose value cannot be parsed.
var ErrMalformedLine = errors.New("malformed record line")

const maxLineSize = 1 << 20

// ValueParser converts the value field of a line into the stored payload.
type ValueParser func(field string) ([]byte, error)

// ParseText stores the field as raw UTF-8 bytes.
func ParseText(field string) ([]byte, error) {
	return []byte(field), nil
}

// ParseUint32 stores a decimal field as 4 little-endian bytes.
func ParseUint32(field string) ([]byte, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(field), 10, 32)
	if err != nil {
		return nil, err
	}
	return binary.LittleEndian.AppendUint32(nil, uint32(v)), nil
}

// KeyFromString maps every rune of s to one symbol.
func KeyFromString(s string) []triebuilder.TrieChar {
	key := make([]triebuilder.TrieChar, 0, len(s))
	for _, r := range s {
		key = append(key, triebuilder.TrieChar(r))
	}
	return key
}

// Scanner reads records from text input.
type Scanner struct {
	r     io.Reader
	parse ValueParser
	line  int
	err   error
}

// NewScanner creates a scanner over r. A nil parse uses ParseText.
func NewScanner(r io.Reader, parse ValueParser) *Scanner {
	if parse == nil {
		parse = ParseText
	}
	return &Scanner{r: r, parse: parse}
}

// Entries yields the records of the input in file order. It stops at the
// first read or parse error, which Err then reports.
func (s *Scanner) Entries() iter.Seq[triebuilder.Entry] {
	return func(yield func(triebuilder.Entry) bool) {
		sc := bufio.NewScanner(s.r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			s.line++
			line := strings.TrimSuffix(sc.Text(), "\r")
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			key, field, _ := strings.Cut(line, "\t")
			value, err := s.parse(field)
			if err != nil {
				s.err = fmt.Errorf("%w: line %d: %v", ErrMalformedLine, s.line, err)
				return
			}

			if !yield(triebuilder.Entry{Key: KeyFromString(key), Value: value}) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			s.err = fmt.Errorf("failed to read records: %w", err)
		}
	}
}

// Err returns the error that stopped Entries, if any.
func (s *Scanner) Err() error {
	return s.err
}

// Lines returns the number of lines consumed so far.
func (s *Scanner) Lines() int {
	return s.line
}

// Sort orders entries by key, then by value, as Build requires.
func Sort(entries []triebuilder.Entry) {
	slices.SortStableFunc(entries, func(a, b triebuilder.Entry) int {
		if c := slices.Compare(a.Key, b.Key); c != 0 {
			return c
		}
		return bytes.Compare(a.Value, b.Value)
	})
}
