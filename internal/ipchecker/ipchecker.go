// Package ipchecker guards internal endpoints by client IP. It extracts
// the caller's address from an HTTP request and verifies it against a
// trusted subnet given in CIDR notation.
package ipchecker

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// IPChecker validates request origins against a trusted subnet.
type IPChecker struct {
	trustedSubnet *net.IPNet
}

// New parses the trusted subnet in CIDR notation (e.g. "10.0.0.0/8").
// An empty string produces a disabled checker: every guarded endpoint
// then rejects all callers.
func New(trustedSubnet string) (*IPChecker, error) {
	if trustedSubnet == "" {
		return &IPChecker{}, nil
	}
	_, allowedNet, err := net.ParseCIDR(trustedSubnet)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/New(): error while `net.ParseCIDR()` calling: %w", err)
	}
	return &IPChecker{
		trustedSubnet: allowedNet,
	}, nil
}

// Check reports whether the IP belongs to the trusted subnet.
// A disabled checker trusts nobody.
func (checker *IPChecker) Check(clientIP net.IP) bool {
	return checker.trustedSubnet != nil && checker.trustedSubnet.Contains(clientIP)
}

// GetClientIP resolves the caller's address, preferring the
// "X-Real-IP" header, then the first "X-Forwarded-For" entry, then
// the connection's RemoteAddr.
func (checker *IPChecker) GetClientIP(request *http.Request) (net.IP, error) {
	ip := net.ParseIP(request.Header.Get("X-Real-IP"))
	if ip != nil {
		return ip, nil
	}
	if xff := request.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		return net.ParseIP(first), nil
	}
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/GetClientIP(): error while `net.SplitHostPort()` calling: %w", err)
	}
	return net.ParseIP(host), nil
}

// IsTrustedSubnetEmpty reports whether the checker was built without a
// trusted subnet.
func (checker *IPChecker) IsTrustedSubnetEmpty() bool {
	return checker.trustedSubnet == nil
}

// RequireTrusted is an HTTP middleware that responds 403 to callers
// outside the trusted subnet.
func (checker *IPChecker) RequireTrusted(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if checker.IsTrustedSubnetEmpty() {
			http.Error(response, "forbidden", http.StatusForbidden)
			return
		}

		clientIP, err := checker.GetClientIP(request)
		if err != nil || !checker.Check(clientIP) {
			http.Error(response, "forbidden", http.StatusForbidden)
			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}
