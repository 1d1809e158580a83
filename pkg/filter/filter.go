// Package filter decides which inbound requests the proxy forwards.
//
// Allow rules are regular expressions grouped by HTTP method. A request is
// admitted when at least one rule for its method matches the request path.
// Patterns are unanchored, so "_search" admits "/index/_search?q=x".
// Methods with no rules, and methods outside the supported set, are denied.
//
// Example:
//
//	f, err := filter.New(map[string][]string{
//	    "GET":     {"(_search|_status|_mapping)"},
//	    "OPTIONS": {".*"},
//	})
//	if err != nil {
//	    return err
//	}
//	f.IsAllowed("get", "/twitter/_search") // true
//	f.IsAllowed("DELETE", "/twitter")      // false
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// RuleError reports an allow rule that could not be compiled.
type RuleError struct {
	Method  string
	Pattern string
	Err     error
}

func (e *RuleError) Error() string {
	if e.Pattern == "" {
		return fmt.Sprintf("allow.%s: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("allow.%s: invalid pattern %q: %v", e.Method, e.Pattern, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// ErrUnsupportedMethod is wrapped by RuleError when a rule names a method
// outside GET, POST, PUT, DELETE, HEAD and OPTIONS.
var ErrUnsupportedMethod = errors.New("unsupported method")

// Filter holds the compiled allow rules. It is immutable once built and safe
// for concurrent use.
type Filter struct {
	rules map[Method][]*regexp.Regexp
}

// New compiles the allow rules. Keys are method names (any case); values are
// regular expressions matched against the request path.
func New(allow map[string][]string) (*Filter, error) {
	f := &Filter{rules: make(map[Method][]*regexp.Regexp, len(allow))}

	// Sorted so that the first reported error is deterministic.
	keys := make([]string, 0, len(allow))
	for k := range allow {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		method, ok := ParseMethod(key)
		if !ok {
			return nil, &RuleError{Method: key, Err: ErrUnsupportedMethod}
		}
		for _, pattern := range allow[key] {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, &RuleError{Method: method.String(), Pattern: pattern, Err: err}
			}
			f.rules[method] = append(f.rules[method], re)
		}
	}

	return f, nil
}

// IsAllowed reports whether a request with the given method and path may be
// forwarded. The path is the request URI as received (path plus query).
func (f *Filter) IsAllowed(method, path string) bool {
	if method == "" || path == "" {
		return false
	}
	m, ok := ParseMethod(method)
	if !ok {
		return false
	}
	for _, re := range f.rules[m] {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// RuleCount returns the number of compiled patterns for a method.
func (f *Filter) RuleCount(m Method) int {
	return len(f.rules[m])
}

// String summarizes the rule set, e.g. "GET=3 OPTIONS=1".
func (f *Filter) String() string {
	var parts []string
	for _, m := range Methods() {
		if n := len(f.rules[m]); n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", m, n))
		}
	}
	if len(parts) == 0 {
		return "deny-all"
	}
	return strings.Join(parts, " ")
}
