package keyword

import (
	"strings"
)

// ImportResult reports how many phrases a bulk operation added and how many were already present.
type ImportResult struct {
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
}

// Store is an ordered, de-duplicated collection of search phrases. Uniqueness is case-sensitive.
//
// A Store belongs to a single session and is not safe for concurrent mutation.
type Store struct {
	phrases []string
	index   map[string]struct{}
}

// NewStore returns an empty keyword store.
func NewStore() *Store {
	return &Store{index: make(map[string]struct{})}
}

// Add trims phrase and appends it when it is non-empty and not already stored.
// It reports whether the phrase was inserted; duplicates are a silent no-op.
func (s *Store) Add(phrase string) bool {
	trimmed := strings.TrimSpace(phrase)
	if trimmed == "" {
		return false
	}

	if _, exists := s.index[trimmed]; exists {
		return false
	}

	s.index[trimmed] = struct{}{}
	s.phrases = append(s.phrases, trimmed)
	return true
}

// Remove deletes every occurrence equal to phrase and reports whether anything was removed.
func (s *Store) Remove(phrase string) bool {
	if _, exists := s.index[phrase]; !exists {
		return false
	}

	delete(s.index, phrase)
	kept := s.phrases[:0]
	for _, existing := range s.phrases {
		if existing != phrase {
			kept = append(kept, existing)
		}
	}
	s.phrases = kept
	return true
}

// ImportLines splits text on line breaks and adds each non-empty trimmed line.
// Both "\n" and "\r\n" separators are accepted; nothing in the payload can make it fail.
func (s *Store) ImportLines(text string) ImportResult {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	return s.Merge(lines)
}

// Merge adds every phrase in order and counts new versus already-present entries.
// Empty phrases are dropped without being counted.
func (s *Store) Merge(phrases []string) ImportResult {
	var result ImportResult
	for _, phrase := range phrases {
		if strings.TrimSpace(phrase) == "" {
			continue
		}
		if s.Add(phrase) {
			result.Added++
		} else {
			result.Duplicates++
		}
	}
	return result
}

// Contains reports whether phrase is stored exactly as given.
func (s *Store) Contains(phrase string) bool {
	_, ok := s.index[phrase]
	return ok
}

// Keywords returns a copy of the stored phrases in insertion order.
func (s *Store) Keywords() []string {
	out := make([]string, len(s.phrases))
	copy(out, s.phrases)
	return out
}

// Len returns the number of stored phrases.
func (s *Store) Len() int {
	return len(s.phrases)
}

// Clear removes every phrase.
func (s *Store) Clear() {
	s.phrases = nil
	s.index = make(map[string]struct{})
}
