package utils

import (
	"context"
	"net"
	"regexp"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

// ipv4Pattern matches a dotted-quad IPv4 literal with every octet in 0-255.
var ipv4Pattern = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

// HostRecord pairs a queried name with one address it resolved to.
// Name is empty when the input was itself an IP literal.
type HostRecord struct {
	Name string `json:"domain"`
	IP   string `json:"ip"`
}

// HostLookuper is the subset of *net.Resolver the Resolver needs.
type HostLookuper interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
}

// Resolver expands a host into every (name, address) pair reachable through its CNAME chain.
type Resolver struct {
	Lookup HostLookuper
	Log    logrus.FieldLogger
}

// NewResolver returns a Resolver using the system resolver.
func NewResolver(log logrus.FieldLogger) *Resolver {
	return &Resolver{
		Lookup: net.DefaultResolver,
		Log:    log,
	}
}

// IsIPv4 reports whether host is a dotted-quad IPv4 literal.
func IsIPv4(host string) bool {
	return ipv4Pattern.MatchString(host)
}

// ResolveAll resolves host and every CNAME target discovered along the way.
// Names are processed in passes: each pass visits a sorted snapshot of the
// pending names, and targets found during a pass are only visited in the next.
// Unknown hosts are logged and skipped.
func (r *Resolver) ResolveAll(ctx context.Context, host string) ([]HostRecord, error) {
	if IsIPv4(host) {
		return []HostRecord{{Name: "", IP: host}}, nil
	}

	var records []HostRecord
	seen := map[string]bool{canonicalKey(host): true}
	pending := []string{host}

	for len(pending) > 0 {
		pass := slices.Clone(pending)
		slices.Sort(pass)
		pending = nil

		for _, h := range pass {
			if err := ctx.Err(); err != nil {
				return records, err
			}

			addrs, err := r.Lookup.LookupIPAddr(ctx, h)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return records, ctxErr
				}
				r.Log.Warnf("Unknown host %q", h)
				r.Log.Debugf("lookup %s: %v", h, err)
				continue
			}

			if cname, err := r.Lookup.LookupCNAME(ctx, h); err != nil {
				r.Log.Debugf("cname %s: %v", h, err)
			} else if key := canonicalKey(cname); key != "" && !seen[key] {
				seen[key] = true
				pending = append(pending, strings.TrimSuffix(cname, "."))
			}

			for _, addr := range addrs {
				rec := HostRecord{Name: h, IP: addr.IP.String()}
				if !slices.Contains(records, rec) {
					records = append(records, rec)
				}
			}
		}
	}
	return records, nil
}

// canonicalKey normalizes a DNS name for visited-set comparisons.
func canonicalKey(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}
