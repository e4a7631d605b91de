package utils

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

// DNSClient queries a single DNS server directly instead of going through the
// system resolver. Unlike net.Resolver, LookupCNAME returns only the first hop
// of a chain, so the Resolver walks longer chains one pass at a time.
type DNSClient struct {
	Server string // host:port
	Client *dns.Client
}

// NewDNSClient returns a client for server. A server without a port gets :53.
func NewDNSClient(server string) *DNSClient {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &DNSClient{
		Server: server,
		Client: &dns.Client{Timeout: 5 * time.Second},
	}
}

func (c *DNSClient) exchange(ctx context.Context, host string, qtype uint16) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	resp, _, err := c.Client.ExchangeContext(ctx, m, c.Server)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s %s", dns.TypeToString[qtype], host)
	}
	if resp.Rcode == dns.RcodeNameError {
		return nil, notFound(host, c.Server)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, &net.DNSError{
			Err:    dns.RcodeToString[resp.Rcode],
			Name:   host,
			Server: c.Server,
		}
	}
	return resp, nil
}

// LookupIPAddr returns the A and AAAA addresses for host, in that order. A
// failed query for one family does not discard the answers for the other.
func (c *DNSClient) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	var addrs []net.IPAddr
	var firstErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		resp, err := c.exchange(ctx, host, qtype)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, rr := range resp.Answer {
			switch v := rr.(type) {
			case *dns.A:
				addrs = append(addrs, net.IPAddr{IP: v.A})
			case *dns.AAAA:
				addrs = append(addrs, net.IPAddr{IP: v.AAAA})
			}
		}
	}
	if len(addrs) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, notFound(host, c.Server)
	}
	return addrs, nil
}

// LookupCNAME returns the CNAME target of host, or host itself as a fully
// qualified name when it has none.
func (c *DNSClient) LookupCNAME(ctx context.Context, host string) (string, error) {
	resp, err := c.exchange(ctx, host, dns.TypeCNAME)
	if err != nil {
		return "", err
	}
	for _, rr := range resp.Answer {
		if cname, ok := rr.(*dns.CNAME); ok {
			return cname.Target, nil
		}
	}
	return dns.Fqdn(host), nil
}

func notFound(host, server string) error {
	return &net.DNSError{
		Err:        "no such host",
		Name:       host,
		Server:     server,
		IsNotFound: true,
	}
}
