/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */

package gnsimport

import (
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// StubResolver exchanges raw DNS messages with a single upstream
// resolver over a shared UDP socket. Each query gets a handle;
// responses are matched to handles by message id and delivered on the
// response channel. A query is retransmitted until it is answered,
// cancelled, or the retry budget runs out, in which case a give-up
// (nil Data) is delivered. Every handle completes exactly once.
type StubResolver struct {
	conn    net.Conn
	dnsQ    chan<- DnsResponse
	timeout time.Duration
	retries int

	mu      sync.Mutex
	handles map[uint16]*StubHandle
	quit    chan struct{}
}

type StubHandle struct {
	sr   *StubResolver
	req  *Request
	id   uint16
	raw  []byte
	done chan struct{}
	once sync.Once
}

func NewStubResolver(address string, timeout time.Duration, retries int, dnsQ chan<- DnsResponse) (*StubResolver, error) {
	if timeout < time.Second {
		timeout = time.Second
	}
	if retries < 1 {
		retries = 1
	}
	conn, err := net.Dial("udp", address)
	if err != nil {
		return nil, fmt.Errorf("StubResolver: failed to connect to %s: %v", address, err)
	}
	sr := &StubResolver{
		conn:    conn,
		dnsQ:    dnsQ,
		timeout: timeout,
		retries: retries,
		handles: make(map[uint16]*StubHandle),
		quit:    make(chan struct{}),
	}
	go sr.reader()
	return sr, nil
}

// NewID returns a message id not used by any in-flight query.
func (sr *StubResolver) NewID() uint16 {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	for {
		id := dns.Id()
		if _, busy := sr.handles[id]; !busy {
			return id
		}
	}
}

// Submit sends a pre-packed query. The message id field is patched
// with req.Id before the first transmission.
func (sr *StubResolver) Submit(req *Request) (*StubHandle, error) {
	if len(req.RawQuery) < 12 {
		return nil, fmt.Errorf("StubResolver: query for %s too short", req.Hostname)
	}
	raw := make([]byte, len(req.RawQuery))
	copy(raw, req.RawQuery)
	binary.BigEndian.PutUint16(raw[0:2], req.Id)

	h := &StubHandle{
		sr:   sr,
		req:  req,
		id:   req.Id,
		raw:  raw,
		done: make(chan struct{}),
	}
	sr.mu.Lock()
	if _, busy := sr.handles[req.Id]; busy {
		sr.mu.Unlock()
		return nil, fmt.Errorf("StubResolver: message id %d already in flight", req.Id)
	}
	sr.handles[req.Id] = h
	sr.mu.Unlock()

	go h.transmitLoop()
	return h, nil
}

// Cancel completes the handle without delivering anything.
func (h *StubHandle) Cancel() {
	h.finish(nil, false)
}

func (h *StubHandle) transmitLoop() {
	timer := time.NewTimer(h.sr.timeout)
	defer timer.Stop()

	for attempt := 0; attempt < h.sr.retries; attempt++ {
		if _, err := h.sr.conn.Write(h.raw); err != nil {
			log.Printf("StubResolver: write for %s failed: %v", h.req.Hostname, err)
		}
		timer.Reset(h.sr.timeout)
		select {
		case <-h.done:
			return
		case <-h.sr.quit:
			return
		case <-timer.C:
		}
	}
	// out of retransmissions
	h.finish(nil, true)
}

// finish resolves the handle exactly once. The delivery send happens
// outside the once body so that a concurrent Cancel never blocks
// behind it.
func (h *StubHandle) finish(data []byte, deliver bool) {
	won := false
	h.once.Do(func() { won = true })
	if !won {
		return
	}
	close(h.done)
	h.sr.mu.Lock()
	delete(h.sr.handles, h.id)
	h.sr.mu.Unlock()
	if deliver {
		select {
		case h.sr.dnsQ <- DnsResponse{Req: h.req, Data: data}:
		case <-h.sr.quit:
		}
	}
}

func (sr *StubResolver) reader() {
	buf := make([]byte, 65536)
	for {
		n, err := sr.conn.Read(buf)
		if err != nil {
			select {
			case <-sr.quit:
				return
			default:
			}
			log.Printf("StubResolver: read error: %v", err)
			continue
		}
		if n < 12 {
			continue
		}
		id := binary.BigEndian.Uint16(buf[0:2])
		sr.mu.Lock()
		h := sr.handles[id]
		sr.mu.Unlock()
		if h == nil {
			if Globals.Debug {
				log.Printf("StubResolver: response with unknown id %d, ignoring", id)
			}
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		h.finish(data, true)
	}
}

// Close cancels all in-flight queries and shuts the socket down.
func (sr *StubResolver) Close() error {
	close(sr.quit)
	sr.mu.Lock()
	pending := make([]*StubHandle, 0, len(sr.handles))
	for _, h := range sr.handles {
		pending = append(pending, h)
	}
	sr.mu.Unlock()
	for _, h := range pending {
		h.Cancel()
	}
	return sr.conn.Close()
}
