package safeagent

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// ErrInvalidPattern is returned when a safety pattern does not compile.
var ErrInvalidPattern = errors.New("safeagent: invalid safety pattern")

// SafetyPolicy decides whether a tool may run without approval. It holds an
// exact-name allow-list, a list of name patterns, and a global bypass flag.
// The policy is mutable for the lifetime of one agent; it is not persisted.
type SafetyPolicy struct {
	mu       sync.RWMutex
	names    map[string]struct{}
	patterns []*regexp.Regexp
	bypass   bool
}

// NewSafetyPolicy creates a policy with the given bypass flag and no entries.
func NewSafetyPolicy(bypass bool) *SafetyPolicy {
	return &SafetyPolicy{
		names:  make(map[string]struct{}),
		bypass: bypass,
	}
}

// IsSafe reports whether the named tool may run without approval: true when
// the bypass flag is set, the name is in the allow-list, or any pattern
// matches the start of the name.
func (p *SafetyPolicy) IsSafe(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.bypass {
		return true
	}
	if _, ok := p.names[name]; ok {
		return true
	}
	for _, re := range p.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Bypass reports whether the global bypass flag is set.
func (p *SafetyPolicy) Bypass() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bypass
}

// AddName adds a tool name to the allow-list.
func (p *SafetyPolicy) AddName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names[name] = struct{}{}
}

// AddPattern compiles and adds a name pattern. Patterns match against the
// start of the tool name and are unanchored at the end, so "read_" allows
// read_file, read_dir, and so on.
func (p *SafetyPolicy) AddPattern(expr string) error {
	re, err := compilePrefixPattern(expr)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidPattern, expr, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.patterns = append(p.patterns, re)
	return nil
}

// RemoveName removes a tool name from the allow-list, reporting whether it
// was present.
func (p *SafetyPolicy) RemoveName(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.names[name]; !ok {
		return false
	}
	delete(p.names, name)
	return true
}

// Clear removes all names and patterns. The bypass flag is untouched.
func (p *SafetyPolicy) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names = make(map[string]struct{})
	p.patterns = nil
}

// Len returns the number of exact names and patterns currently held.
func (p *SafetyPolicy) Len() (names, patterns int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.names), len(p.patterns)
}

// compilePrefixPattern anchors the expression at the start of the subject so
// matching keeps prefix semantics regardless of where the regexp engine would
// otherwise find a match.
func compilePrefixPattern(expr string) (*regexp.Regexp, error) {
	if !strings.HasPrefix(expr, "^") {
		expr = "^(?:" + expr + ")"
	}
	return regexp.Compile(expr)
}
