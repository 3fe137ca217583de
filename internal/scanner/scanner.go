package scanner

import (
	"sort"
	"strings"
	"sync"
)

// Match reports which token tripped the scan.
type Match struct {
	Category Category
	Token    string
}

// Scanner performs case-insensitive substring scans of workflow content
// against the forbidden-token table. Safe for concurrent use; Reload swaps
// the table atomically under the lock.
type Scanner struct {
	mu    sync.RWMutex
	table Table
}

func New(table Table) *Scanner {
	s := &Scanner{}
	s.Reload(table)
	return s
}

// Scan returns the first matching token, scanning categories in a stable
// order so results are deterministic. A single match anywhere fails the whole
// payload.
func (s *Scanner) Scan(text string) (Match, bool) {
	lower := strings.ToLower(text)

	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]Category, 0, len(s.table.Categories))
	for cat := range s.table.Categories {
		categories = append(categories, cat)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	for _, cat := range categories {
		for _, token := range s.table.Categories[cat] {
			if strings.Contains(lower, token) {
				return Match{Category: cat, Token: token}, true
			}
		}
	}
	return Match{}, false
}

// Reload replaces the token table. Tokens are stored lower-cased; matching
// assumes it.
func (s *Scanner) Reload(table Table) {
	normalized := Table{
		Version:    table.Version,
		Categories: make(map[Category][]string, len(table.Categories)),
	}
	for cat, tokens := range table.Categories {
		lowered := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			tok = strings.ToLower(tok)
			if tok != "" {
				lowered = append(lowered, tok)
			}
		}
		normalized.Categories[cat] = lowered
	}

	s.mu.Lock()
	s.table = normalized
	s.mu.Unlock()
}

// Version returns the version of the active table.
func (s *Scanner) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Version
}
