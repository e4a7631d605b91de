package utils

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLookup answers from maps and records every name it is asked about.
type fakeLookup struct {
	addrs  map[string][]string
	cnames map[string]string
	calls  []string
}

func (f *fakeLookup) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	f.calls = append(f.calls, host)
	ips, ok := f.addrs[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	var out []net.IPAddr
	for _, ip := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(ip)})
	}
	return out, nil
}

func (f *fakeLookup) LookupCNAME(_ context.Context, host string) (string, error) {
	if target, ok := f.cnames[host]; ok {
		return target + ".", nil
	}
	return host + ".", nil
}

func newTestResolver(f *fakeLookup) (*Resolver, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return &Resolver{Lookup: f, Log: log}, hook
}

func TestIsIPv4(t *testing.T) {
	assert := assert.New(t)
	assert.True(IsIPv4("93.184.216.34"))
	assert.True(IsIPv4("0.0.0.0"))
	assert.True(IsIPv4("255.255.255.255"))
	assert.True(IsIPv4("01.2.3.4"))
	assert.False(IsIPv4("256.1.1.1"))
	assert.False(IsIPv4("1.2.3"))
	assert.False(IsIPv4("1.2.3.4.5"))
	assert.False(IsIPv4("::1"))
	assert.False(IsIPv4("www.example.com"))
	assert.False(IsIPv4(" 1.2.3.4"))
}

func TestResolveAllIPLiteral(t *testing.T) {
	f := &fakeLookup{}
	r, _ := newTestResolver(f)

	records, err := r.ResolveAll(context.Background(), "93.184.216.34")
	require.NoError(t, err)
	assert.Equal(t, []HostRecord{{Name: "", IP: "93.184.216.34"}}, records)
	assert.Empty(t, f.calls)
}

func TestResolveAllDeduplicates(t *testing.T) {
	f := &fakeLookup{
		addrs: map[string][]string{
			"www.example.com": {"192.0.2.1", "192.0.2.1", "2001:db8::1", "192.0.2.2", "2001:db8::1"},
		},
	}
	r, _ := newTestResolver(f)

	records, err := r.ResolveAll(context.Background(), "www.example.com")
	require.NoError(t, err)
	assert.Equal(t, []HostRecord{
		{Name: "www.example.com", IP: "192.0.2.1"},
		{Name: "www.example.com", IP: "2001:db8::1"},
		{Name: "www.example.com", IP: "192.0.2.2"},
	}, records)
}

func TestResolveAllFollowsCNAME(t *testing.T) {
	f := &fakeLookup{
		addrs: map[string][]string{
			"a.example.com": {"192.0.2.10"},
			"b.example.net": {"192.0.2.10"},
		},
		cnames: map[string]string{"a.example.com": "b.example.net"},
	}
	r, _ := newTestResolver(f)

	records, err := r.ResolveAll(context.Background(), "a.example.com")
	require.NoError(t, err)
	assert.Equal(t, []HostRecord{
		{Name: "a.example.com", IP: "192.0.2.10"},
		{Name: "b.example.net", IP: "192.0.2.10"},
	}, records)
}

func TestResolveAllVisitsTargetsInNextPass(t *testing.T) {
	// Targets sort before their aliases but are still visited in later passes.
	f := &fakeLookup{
		addrs: map[string][]string{
			"m.example.com": {"192.0.2.1"},
			"c.example.com": {"192.0.2.2"},
			"a.example.com": {"192.0.2.3"},
		},
		cnames: map[string]string{
			"m.example.com": "c.example.com",
			"c.example.com": "a.example.com",
		},
	}
	r, _ := newTestResolver(f)

	records, err := r.ResolveAll(context.Background(), "m.example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"m.example.com", "c.example.com", "a.example.com"}, f.calls)
	assert.Equal(t, []HostRecord{
		{Name: "m.example.com", IP: "192.0.2.1"},
		{Name: "c.example.com", IP: "192.0.2.2"},
		{Name: "a.example.com", IP: "192.0.2.3"},
	}, records)
}

func TestResolveAllCNAMECycleTerminates(t *testing.T) {
	f := &fakeLookup{
		addrs: map[string][]string{
			"a.example.com": {"192.0.2.1"},
			"b.example.com": {"192.0.2.2"},
		},
		cnames: map[string]string{
			"a.example.com": "b.example.com",
			"b.example.com": "a.example.com",
		},
	}
	r, _ := newTestResolver(f)

	records, err := r.ResolveAll(context.Background(), "a.example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, f.calls)
	assert.Len(t, records, 2)
}

func TestResolveAllCNAMECaseAndSelf(t *testing.T) {
	f := &fakeLookup{
		addrs: map[string][]string{
			"www.example.com": {"192.0.2.1"},
		},
		cnames: map[string]string{"www.example.com": "WWW.Example.COM"},
	}
	r, _ := newTestResolver(f)

	records, err := r.ResolveAll(context.Background(), "www.example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"www.example.com"}, f.calls)
	assert.Len(t, records, 1)
}

func TestResolveAllUnknownHost(t *testing.T) {
	f := &fakeLookup{}
	r, hook := newTestResolver(f)

	records, err := r.ResolveAll(context.Background(), "nope.invalid")
	require.NoError(t, err)
	assert.Empty(t, records)

	var warnings []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings = append(warnings, e.Message)
		}
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, `Unknown host "nope.invalid"`, warnings[0])
}

func TestResolveAllUnknownTargetKeepsOthers(t *testing.T) {
	f := &fakeLookup{
		addrs:  map[string][]string{"a.example.com": {"192.0.2.1"}},
		cnames: map[string]string{"a.example.com": "gone.example.com"},
	}
	r, hook := newTestResolver(f)

	records, err := r.ResolveAll(context.Background(), "a.example.com")
	require.NoError(t, err)
	assert.Equal(t, []HostRecord{{Name: "a.example.com", IP: "192.0.2.1"}}, records)
	assert.True(t, strings.Contains(hook.LastEntry().Message, "gone.example.com"))
}

func TestResolveAllCancelled(t *testing.T) {
	f := &fakeLookup{addrs: map[string][]string{"a.example.com": {"192.0.2.1"}}}
	r, _ := newTestResolver(f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.ResolveAll(ctx, "a.example.com")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.calls)
}
