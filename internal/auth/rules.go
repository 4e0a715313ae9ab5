package auth

import (
	"net/http"
	"strings"
)

// Rule is one entry of the exemption table. Rules are evaluated top to bottom
// and the first matching rule decides; a request matching no rule needs a token.
type Rule struct {
	Name   string
	Match  func(path, method string) bool
	Exempt bool
}

// DefaultRules is the static allow-list: CORS preflight, the health probe,
// the documentation routes and login.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "preflight", Match: MethodIs(http.MethodOptions), Exempt: true},
		{Name: "health", Match: PathIs("/health"), Exempt: true},
		{Name: "docs", Match: PathUnder("/docs"), Exempt: true},
		{Name: "login", Match: PathIs("/auth/login"), Exempt: true},
	}
}

// Exempt evaluates rules in order.
func Exempt(rules []Rule, path, method string) bool {
	if rule, ok := FirstMatch(rules, path, method); ok {
		return rule.Exempt
	}
	return false
}

// FirstMatch returns the first rule matching the request.
func FirstMatch(rules []Rule, path, method string) (Rule, bool) {
	for _, rule := range rules {
		if rule.Match != nil && rule.Match(path, method) {
			return rule, true
		}
	}
	return Rule{}, false
}

// PathIs matches one exact path.
func PathIs(p string) func(path, method string) bool {
	return func(path, _ string) bool {
		return path == p
	}
}

// PathUnder matches prefix itself and anything below it.
func PathUnder(prefix string) func(path, method string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	return func(path, _ string) bool {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
}

// MethodIs matches any path requested with method.
func MethodIs(m string) func(path, method string) bool {
	return func(_, method string) bool {
		return strings.EqualFold(method, m)
	}
}
