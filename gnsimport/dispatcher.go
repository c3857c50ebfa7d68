/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */

package gnsimport

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"time"

	"github.com/miekg/dns"
)

// Importer is the scheduling engine. A single goroutine (Run) owns
// every request and all the bookkeeping; the stub resolver and the
// store engine talk to it exclusively over channels.
//
// A live request is in exactly one place: on the expiry heap waiting
// for its records to expire, or submitted. Submission is throttled
// three ways: the heap root must be due, at most PendingThreshold
// queries and store ops may be outstanding, and consecutive
// submissions are spaced by SubmitSpacing.
type Importer struct {
	Stats ImportStats

	conf      *Config
	stub      *StubResolver
	qtype     uint16
	minExpire time.Duration
	oneShot   bool

	heap         ExpiryHeap
	active       map[*Request]struct{} // submitted to the resolver
	seen         map[string]*Request   // every hostname ever accepted
	pending      int                   // in flight at the resolver
	pendingStore int                   // outstanding store ops
	inputDone    bool
	lastSubmit   time.Time
}

// NewImporter wires an importer to the channels in conf.Internal. The
// stub resolver must already be connected. oneShot makes every name a
// single resolve-and-store pass instead of a perpetual refresh.
func NewImporter(conf *Config, stub *StubResolver, oneShot bool) (*Importer, error) {
	qtype := dns.TypeNS
	if conf.Resolver.Qtype != "" {
		t, ok := dns.StringToType[conf.Resolver.Qtype]
		if !ok {
			return nil, fmt.Errorf("NewImporter: unknown query type %q", conf.Resolver.Qtype)
		}
		qtype = t
	}
	var minExpire time.Duration
	if conf.Store.MinExpire != "" {
		d, err := time.ParseDuration(conf.Store.MinExpire)
		if err != nil {
			return nil, fmt.Errorf("NewImporter: bad minimum expiration %q: %v", conf.Store.MinExpire, err)
		}
		minExpire = d
	}
	return &Importer{
		conf:      conf,
		stub:      stub,
		qtype:     qtype,
		minExpire: minExpire,
		oneShot:   oneShot,
		active:    make(map[*Request]struct{}),
		seen:      make(map[string]*Request),
	}, nil
}

// Run is the engine loop. It returns when the input is exhausted and
// no request needs further work (one-shot mode), or when the context
// is cancelled. In-flight queries and store ops are cancelled or
// drained on the way out; nothing half-done reaches the store.
func (imp *Importer) Run(ctx context.Context) error {
	hostnameQ := imp.conf.Internal.HostnameQ
	dnsQ := imp.conf.Internal.DnsQ
	storeDoneQ := imp.conf.Internal.StoreDoneQ

	timer := time.NewTimer(TimerFloor)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	log.Printf("Importer: starting, qtype=%s, threshold=%d", dns.TypeToString[imp.qtype], PendingThreshold)

	for {
		wake := imp.processQueue(time.Now())
		if imp.finished() {
			log.Printf("Importer: all names processed")
			return nil
		}
		if wake > 0 {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(wake)
		}

		select {
		case <-ctx.Done():
			imp.shutdown()
			return ctx.Err()

		case hostname, ok := <-hostnameQ:
			if !ok {
				imp.inputDone = true
				hostnameQ = nil
				continue
			}
			imp.handleHostname(hostname, time.Now())

		case resp := <-dnsQ:
			imp.handleDnsResponse(resp, time.Now())

		case res := <-storeDoneQ:
			imp.handleStoreResult(res, time.Now())

		case <-timer.C:
		}
	}
}

// processQueue submits due requests as long as the throttle allows.
// The returned duration is when the loop should wake up again without
// external events; zero means no timer is needed (a completion will
// drive the next step).
func (imp *Importer) processQueue(now time.Time) time.Duration {
	for {
		if imp.pending+imp.pendingStore >= PendingThreshold {
			return 0
		}
		root := imp.heap.Peek()
		if root == nil {
			return 0
		}
		if root.Expires.After(now) {
			wake := root.Expires.Sub(now)
			if wake < TimerFloor {
				wake = TimerFloor
			}
			return wake
		}
		if root.storePending {
			// its previous record set is still on its way to the
			// store; never let two store ops for one label race
			return TimerFloor
		}
		if since := now.Sub(imp.lastSubmit); since < SubmitSpacing {
			wake := SubmitSpacing - since
			if wake < TimerFloor {
				wake = TimerFloor
			}
			return wake
		}
		imp.submit(imp.heap.PopRoot(), now)
		now = time.Now()
	}
}

func (imp *Importer) submit(req *Request, now time.Time) {
	req.Id = imp.stub.NewID()
	req.OpStart = now
	handle, err := imp.stub.Submit(req)
	if err != nil {
		log.Printf("Importer: failed to submit query for %s: %v", req.Hostname, err)
		imp.queryFailed(req, now)
		return
	}
	req.handle = handle
	imp.active[req] = struct{}{}
	imp.pending++
	imp.lastSubmit = now
	imp.Stats.Lookups.Add(1)
	if Globals.Debug {
		log.Printf("Importer: submitted %s query for %s (id %d, attempt %d)",
			dns.TypeToString[imp.qtype], req.Hostname, req.Id, req.IssueNum+1)
	}
}

func (imp *Importer) handleHostname(hostname string, now time.Time) {
	hostname = CanonicalName(hostname)
	if _, dup := imp.seen[hostname]; dup {
		log.Printf("Importer: duplicate hostname %s ignored", hostname)
		imp.Stats.Duplicates.Add(1)
		return
	}
	zone, label := FindZone(hostname)
	if zone == nil {
		if Globals.Verbose {
			log.Printf("Importer: hostname %s does not belong to any configured zone", hostname)
		}
		imp.Stats.Rejected.Add(1)
		return
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(hostname), imp.qtype)
	m.RecursionDesired = true
	raw, err := m.Pack()
	if err != nil {
		log.Printf("Importer: failed to build query for %s: %v", hostname, err)
		imp.Stats.Rejected.Add(1)
		return
	}

	req := &Request{
		Hostname: hostname,
		Label:    label,
		Zone:     zone,
		RawQuery: raw,
		Expires:  now,
		OneShot:  imp.oneShot,
		index:    -1,
	}
	imp.seen[hostname] = req

	// Hot start: ask the store first. The request enters the heap only
	// once we know whether usable records already exist.
	req.storePending = true
	imp.pendingStore++
	imp.sendStore(StoreRequest{
		Cmd:   StoreCmdLookup,
		Zone:  zone,
		Label: label,
		Cls:   req,
		Start: now,
	})
}

func (imp *Importer) handleDnsResponse(resp DnsResponse, now time.Time) {
	req := resp.Req
	if req.handle == nil {
		// already cancelled or completed
		return
	}
	if resp.Data != nil {
		if id := binary.BigEndian.Uint16(resp.Data[0:2]); id != req.Id {
			if Globals.Debug {
				log.Printf("Importer: id mismatch for %s (got %d, want %d), ignoring", req.Hostname, id, req.Id)
			}
			return
		}
	}
	req.handle = nil
	delete(imp.active, req)
	imp.pending--
	imp.Stats.DnsLatency.Add(now.Sub(req.OpStart))

	if resp.Data == nil {
		imp.queryFailed(req, now)
		return
	}

	msg := new(dns.Msg)
	if err := msg.Unpack(resp.Data); err != nil {
		log.Printf("Importer: failed to parse response for %s: %v", req.Hostname, err)
		imp.queryFailed(req, now)
		return
	}

	req.IssueNum = 0
	recs := TranslateMsg(msg, req.Hostname, now.Add(imp.minExpire), now)
	imp.Stats.Records.Add(uint64(len(recs)))
	req.Records = recs

	if len(recs) > 0 {
		req.Expires = minExpiration(recs)
	} else {
		req.Expires = now.Add(EmptySetRecheck)
	}

	// Hand the set to the store and keep going; a store failure is
	// logged by the result handler but never re-resolved early.
	req.storePending = true
	imp.pendingStore++
	imp.sendStore(StoreRequest{
		Cmd:     StoreCmdStore,
		Zone:    req.Zone,
		Label:   req.Label,
		Records: recs,
		Cls:     req,
		Start:   now,
	})

	if !req.OneShot {
		imp.heap.Insert(req)
	}
}

// queryFailed covers both stub give-up and an unparseable response.
func (imp *Importer) queryFailed(req *Request, now time.Time) {
	req.IssueNum++
	if req.IssueNum > MaxRetries {
		log.Printf("Importer: giving up on %s after %d attempts", req.Hostname, req.IssueNum)
		imp.Stats.Failures.Add(1)
		return
	}
	req.Expires = now
	imp.heap.Insert(req)
}

func (imp *Importer) handleStoreResult(res StoreResult, now time.Time) {
	req := res.Cls.(*Request)
	req.storePending = false
	imp.pendingStore--
	imp.Stats.StoreLatency.Add(now.Sub(res.Start))

	switch res.Cmd {
	case StoreCmdLookup:
		if res.Error != nil {
			log.Printf("Importer: store lookup for %s failed, resolving fresh: %v", req.Hostname, res.Error)
		}
		if res.Error == nil && len(res.Records) > 0 {
			imp.Stats.Cached.Add(1)
			req.Records = res.Records
			req.Expires = minExpiration(res.Records)
		} else {
			req.Expires = now
		}
		imp.heap.Insert(req)

	case StoreCmdStore:
		if res.Error != nil {
			log.Printf("Importer: failed to store records for %s: %v", req.Hostname, res.Error)
			imp.Stats.StoreErrors.Add(1)
			return
		}
		sets := imp.Stats.RecordSets.Add(1)
		if sets%StoreProgressInterval == 0 {
			log.Printf("Importer: processed %d record sets", sets)
		}
	}
}

// sendStore pushes a request to the store engine without ever
// deadlocking against it: while the send blocks, completed store
// results keep being drained.
func (imp *Importer) sendStore(req StoreRequest) {
	for {
		select {
		case imp.conf.Internal.StoreQ <- req:
			return
		case res := <-imp.conf.Internal.StoreDoneQ:
			imp.handleStoreResult(res, time.Now())
		}
	}
}

func (imp *Importer) finished() bool {
	return imp.inputDone && imp.heap.Len() == 0 && imp.pending == 0 && imp.pendingStore == 0
}

func (imp *Importer) shutdown() {
	for req := range imp.active {
		if req.handle != nil {
			req.handle.Cancel()
			req.handle = nil
		}
	}
	for _, req := range imp.seen {
		imp.heap.Remove(req)
	}
	log.Printf("Importer: shut down with %d queries and %d store ops pending", imp.pending, imp.pendingStore)
}

// LogSummary prints the final counters. Safe once Run has returned.
func (imp *Importer) LogSummary() {
	log.Printf("Rejected %d names, had %d cached, did %d lookups, stored %d record sets",
		imp.Stats.Rejected.Load(), imp.Stats.Cached.Load(),
		imp.Stats.Lookups.Load(), imp.Stats.RecordSets.Load())
	log.Printf("Found %d records, %d lookups failed, %d/%d pending on shutdown",
		imp.Stats.Records.Load(), imp.Stats.Failures.Load(),
		imp.pending, imp.pendingStore)
}

func minExpiration(recs []Record) time.Time {
	min := recs[0].Expiration
	for _, rec := range recs[1:] {
		if rec.Expiration.Before(min) {
			min = rec.Expiration
		}
	}
	return min
}
