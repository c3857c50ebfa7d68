/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */

package gnsimport

import (
	"crypto/ed25519"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	AppName          string
	AppVersion       string
	AppDate          string
	ServerBootTime   time.Time
	ServerConfigTime time.Time
	Service          ServiceConf
	Resolver         ResolverConf
	Store            StoreConf
	Apiserver        ApiserverConf
	Zones            map[string]ZoneConf
	Log              struct {
		File string
	}
	Internal InternalConf
}

type ServiceConf struct {
	Name    string `validate:"required"`
	Debug   *bool
	Verbose *bool
}

type ResolverConf struct {
	Address string `validate:"required"` // addr:port of the upstream resolver
	Timeout int    // seconds per transmission, before retransmit
	Retries int    // retransmissions before the stub gives up
	Qtype   string // query type for imported names, default NS
}

type StoreConf struct {
	File      string // sqlite file; empty selects the text sink
	MinExpire string // duration floor for record expirations
}

type ApiserverConf struct {
	Address string // empty disables the stats API
}

// InternalConf holds the channel plumbing between the engines. Not
// read from file.
type InternalConf struct {
	Store      RecordStore
	HostnameQ  chan string
	DnsQ       chan DnsResponse
	StoreQ     chan StoreRequest
	StoreDoneQ chan StoreResult
	APIStopCh  chan struct{}
}

// Zone is an authoritative zone we import names into. The original
// tool reads one ego key per zone; here each zone carries an ed25519
// key pair, with KeyID the base32 form of the public key.
type Zone struct {
	Domain string // canonical: lower case, no trailing dot
	KeyID  string
	Key    ed25519.PrivateKey
}

// ZoneConf is the external (yaml) config for a zone.
type ZoneConf struct {
	Name    string `yaml:"name" validate:"required"`
	KeySeed string `yaml:"keyseed"` // hex seed; a fresh key is generated if empty
}

// Record is one namestore record. Type is a DNS type code, or one of
// the Type* constants above the 16-bit range.
type Record struct {
	Type       uint32
	Expiration time.Time
	Flags      uint32
	Data       []byte
}

// Request is the unit of scheduling: one hostname being imported into
// one zone. A live request is in exactly one place: on the expiry
// heap, or submitted (in flight at the resolver and/or waiting on a
// store op). The dispatcher goroutine owns all fields.
type Request struct {
	Hostname string // FQDN we resolve
	Label    string // leftmost label, the name under the zone
	Zone     *Zone
	Id       uint16 // DNS message id of the current query
	RawQuery []byte // pre-packed query, id patched per attempt
	IssueNum int    // failed attempts so far
	Records  []Record
	Expires  time.Time
	OpStart  time.Time // submission time of the current attempt
	OneShot  bool      // store once, then drop (zonewalk mode)

	handle       *StubHandle
	storePending bool // a store op for this request is in flight
	index        int  // heap position, -1 when off the heap
}

// DnsResponse is what the stub resolver delivers back to the
// dispatcher. Data is nil when the stub gave up.
type DnsResponse struct {
	Req  *Request
	Data []byte
}

type StoreCmd uint8

const (
	StoreCmdLookup StoreCmd = iota + 1
	StoreCmdStore
)

type StoreRequest struct {
	Cmd     StoreCmd
	Zone    *Zone
	Label   string
	Records []Record
	Cls     any // returned untouched in the StoreResult
	Start   time.Time
}

type StoreResult struct {
	Cmd     StoreCmd
	Records []Record // lookup result
	Error   error
	Cls     any
	Start   time.Time
}

// LatencyStats aggregates durations for the stats API.
type LatencyStats struct {
	mu    sync.Mutex
	count uint64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

func (ls *LatencyStats) Add(d time.Duration) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.count == 0 || d < ls.min {
		ls.min = d
	}
	if d > ls.max {
		ls.max = d
	}
	ls.count++
	ls.total += d
}

func (ls *LatencyStats) Snapshot() (count uint64, avg, min, max time.Duration) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.count > 0 {
		avg = ls.total / time.Duration(ls.count)
	}
	return ls.count, avg, ls.min, ls.max
}

// ImportStats are the live counters behind both the final summary and
// the stats API. All fields are safe for concurrent use.
type ImportStats struct {
	Rejected     atomic.Uint64 // names matching no zone
	Duplicates   atomic.Uint64 // names seen more than once on input
	Cached       atomic.Uint64 // names satisfied from the store at startup
	Lookups      atomic.Uint64 // DNS queries submitted
	Failures     atomic.Uint64 // names abandoned after too many attempts
	RecordSets   atomic.Uint64 // record sets handed to the store
	Records      atomic.Uint64 // records found in DNS responses
	StoreErrors  atomic.Uint64
	DnsLatency   LatencyStats
	StoreLatency LatencyStats
}
