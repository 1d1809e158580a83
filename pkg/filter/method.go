package filter

import "strings"

// Method is one of the HTTP methods the proxy can be configured to forward.
type Method int

const (
	// MethodUnknown is returned for methods the proxy never forwards.
	MethodUnknown Method = iota
	MethodGet
	MethodPost
	MethodPut
	MethodDelete
	MethodHead
	MethodOptions
)

var methodNames = map[Method]string{
	MethodGet:     "GET",
	MethodPost:    "POST",
	MethodPut:     "PUT",
	MethodDelete:  "DELETE",
	MethodHead:    "HEAD",
	MethodOptions: "OPTIONS",
}

// Methods lists every supported method in a stable order.
func Methods() []Method {
	return []Method{MethodGet, MethodPost, MethodPut, MethodDelete, MethodHead, MethodOptions}
}

// ParseMethod maps a method name to a Method. Matching is case-insensitive.
// The second return value is false for unsupported methods.
func ParseMethod(name string) (Method, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for m, n := range methodNames {
		if n == upper {
			return m, true
		}
	}
	return MethodUnknown, false
}

// String returns the canonical upper-case method name.
func (m Method) String() string {
	if n, ok := methodNames[m]; ok {
		return n
	}
	return "UNKNOWN"
}
