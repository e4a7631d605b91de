// Package dnstest runs an in-process DNS server answering from a fixed zone,
// so resolution can be tested without touching the network.
package dnstest

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

// Zone describes the names the server knows. Names may be given with or without the trailing dot.
type Zone struct {
	CNAMEs   map[string]string   // alias -> target
	Addrs    map[string][]string // name -> A and AAAA addresses
	ServFail map[string][]string // name -> query types ("A", "AAAA", ...) answered with SERVFAIL
}

// Server is a running mock DNS server.
type Server struct {
	Addr string // host:port to query

	srv     *dns.Server
	mu      sync.Mutex
	queries []string
}

type handler struct {
	s        *Server
	cnames   map[string]string
	addrs    map[string][]string
	servFail map[string]bool // "<type> <name>"
}

// Start serves zone over UDP on a random loopback port.
func Start(zone Zone) (*Server, error) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		return nil, errors.Wrap(err, "listen")
	}

	s := &Server{Addr: pc.LocalAddr().String()}
	h := &handler{
		s:        s,
		cnames:   make(map[string]string),
		addrs:    make(map[string][]string),
		servFail: make(map[string]bool),
	}
	for alias, target := range zone.CNAMEs {
		h.cnames[fqdn(alias)] = fqdn(target)
	}
	for name, ips := range zone.Addrs {
		h.addrs[fqdn(name)] = ips
	}
	for name, qtypes := range zone.ServFail {
		for _, qtype := range qtypes {
			h.servFail[qtype+" "+fqdn(name)] = true
		}
	}

	started := make(chan struct{})
	s.srv = &dns.Server{
		PacketConn:        pc,
		Handler:           h,
		NotifyStartedFunc: func() { close(started) },
	}

	errc := make(chan error, 1)
	go func() {
		errc <- s.srv.ActivateAndServe()
	}()

	select {
	case <-started:
		return s, nil
	case err := <-errc:
		return nil, errors.Wrap(err, "serve")
	case <-time.After(5 * time.Second):
		pc.Close()
		return nil, errors.New("dns server did not start")
	}
}

// Close stops the server.
func (s *Server) Close() error {
	return s.srv.Shutdown()
}

// Queries returns every "<type> <name>" question received so far, in order.
func (s *Server) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func (h *handler) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	msg := new(dns.Msg)
	msg.SetReply(r)
	msg.Authoritative = true

	q := r.Question[0]
	name := strings.ToLower(q.Name)

	query := dns.TypeToString[q.Qtype] + " " + name
	h.s.mu.Lock()
	h.s.queries = append(h.s.queries, query)
	h.s.mu.Unlock()

	if h.servFail[query] {
		msg.SetRcode(r, dns.RcodeServerFailure)
		_ = w.WriteMsg(msg)
		return
	}

	if _, ok := h.cnames[name]; !ok {
		if _, ok := h.addrs[name]; !ok {
			msg.SetRcode(r, dns.RcodeNameError)
			_ = w.WriteMsg(msg)
			return
		}
	}

	switch q.Qtype {
	case dns.TypeCNAME:
		if target, ok := h.cnames[name]; ok {
			msg.Answer = append(msg.Answer, &dns.CNAME{
				Hdr:    header(name, dns.TypeCNAME),
				Target: target,
			})
		}

	case dns.TypeA, dns.TypeAAAA:
		// Chase the chain the way a recursive resolver would.
		cur := name
		for hops := 0; hops < 8; hops++ {
			target, ok := h.cnames[cur]
			if !ok {
				break
			}
			msg.Answer = append(msg.Answer, &dns.CNAME{
				Hdr:    header(cur, dns.TypeCNAME),
				Target: target,
			})
			cur = target
		}
		for _, addr := range h.addrs[cur] {
			ip := net.ParseIP(addr)
			if ip == nil {
				continue
			}
			if v4 := ip.To4(); v4 != nil && q.Qtype == dns.TypeA {
				msg.Answer = append(msg.Answer, &dns.A{Hdr: header(cur, dns.TypeA), A: v4})
			} else if v4 == nil && q.Qtype == dns.TypeAAAA {
				msg.Answer = append(msg.Answer, &dns.AAAA{Hdr: header(cur, dns.TypeAAAA), AAAA: ip})
			}
		}
	}
	_ = w.WriteMsg(msg)
}

func header(name string, rrtype uint16) dns.RR_Header {
	return dns.RR_Header{Name: name, Rrtype: rrtype, Class: dns.ClassINET, Ttl: 60}
}

func fqdn(name string) string {
	return dns.Fqdn(strings.ToLower(name))
}
