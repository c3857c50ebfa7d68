/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */

package gnsimport

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// packName encodes a domain name in uncompressed DNS wire format.
func packName(name string) ([]byte, error) {
	buf := make([]byte, 256)
	off, err := dns.PackDomainName(dns.Fqdn(name), buf, 0, nil, false)
	if err != nil {
		return nil, err
	}
	return buf[:off], nil
}

// rdataBytes re-encodes the rdata of an RR in uncompressed wire form.
func rdataBytes(rr dns.RR) ([]byte, error) {
	buf := make([]byte, 65536)
	off, err := dns.PackRR(rr, buf, 0, nil, false)
	if err != nil {
		return nil, err
	}
	nbuf := make([]byte, 256)
	nlen, err := dns.PackDomainName(rr.Header().Name, nbuf, 0, nil, false)
	if err != nil {
		return nil, err
	}
	start := nlen + 10 // name + type, class, ttl, rdlength
	if start > off {
		return nil, fmt.Errorf("rdataBytes: malformed %s record", dns.TypeToString[rr.Header().Rrtype])
	}
	return buf[start:off], nil
}

func appendUint16(b []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(b, v)
}

func appendUint32(b []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(b, v)
}

func appendName(b []byte, name string) ([]byte, error) {
	n, err := packName(name)
	if err != nil {
		return nil, err
	}
	return append(b, n...), nil
}

// rrExpiration turns a TTL into an absolute expiration, bumped up to
// the configured floor. A zero TTL reports ok=false: the record is
// already expired and must not be stored.
func rrExpiration(ttl uint32, minExpire, now time.Time) (time.Time, bool) {
	if ttl == 0 {
		return time.Time{}, false
	}
	exp := now.Add(time.Duration(ttl) * time.Second)
	if exp.Before(minExpire) {
		exp = minExpire
	}
	return exp, true
}

// gns2dnsData encodes a delegation payload: the name where DNS
// resolution continues, followed by the DNS server (an IP in text
// form, or a server name), both as uncompressed DNS names.
func gns2dnsData(owner, server string) ([]byte, error) {
	b, err := appendName(nil, owner)
	if err != nil {
		return nil, err
	}
	return appendName(b, server)
}

// translateNS handles an NS record owned by the imported name. The
// whole message is scanned for glue (A, AAAA or CNAME records for the
// nameserver); each glue hit yields one delegation record carrying the
// glue's own expiration. Without glue the delegation points at the
// nameserver by name.
func translateNS(ns *dns.NS, msg *dns.Msg, owner string, minExpire, now time.Time) []Record {
	var out []Record
	target := ns.Hdr.Name // delegation continues at the owner itself

	for _, section := range [][]dns.RR{msg.Answer, msg.Ns, msg.Extra} {
		for _, rr := range section {
			if !strings.EqualFold(rr.Header().Name, ns.Ns) {
				continue
			}
			var server string
			switch glue := rr.(type) {
			case *dns.A:
				server = glue.A.String()
			case *dns.AAAA:
				server = glue.AAAA.String()
			case *dns.CNAME:
				server = glue.Target
			default:
				continue
			}
			exp, ok := rrExpiration(rr.Header().Ttl, minExpire, now)
			if !ok {
				continue
			}
			data, err := gns2dnsData(target, server)
			if err != nil {
				log.Printf("Translate: failed to encode delegation for %s: %v", owner, err)
				continue
			}
			out = append(out, Record{Type: TypeGNS2DNS, Expiration: exp, Data: data})
		}
	}
	if len(out) > 0 {
		return out
	}

	// No glue. Encode the delegation with the nameserver's name; the
	// resolver on the other side has to find its address elsewhere.
	// TODO: schedule the out-of-zone nameserver name for import as well.
	exp, ok := rrExpiration(ns.Hdr.Ttl, minExpire, now)
	if !ok {
		return nil
	}
	data, err := gns2dnsData(target, ns.Ns)
	if err != nil {
		log.Printf("Translate: failed to encode delegation for %s: %v", owner, err)
		return nil
	}
	return []Record{{Type: TypeGNS2DNS, Expiration: exp, Data: data}}
}

// translateRR converts one RR owned by the imported name into record
// payloads. Name-bearing types are re-encoded uncompressed so the
// stored bytes never reference message offsets.
func translateRR(rr dns.RR, minExpire, now time.Time) (*Record, error) {
	exp, ok := rrExpiration(rr.Header().Ttl, minExpire, now)
	if !ok {
		return nil, nil
	}

	var data []byte
	var err error

	switch v := rr.(type) {
	case *dns.CNAME:
		data, err = packName(v.Target)
	case *dns.MX:
		data = appendUint16(nil, v.Preference)
		data, err = appendName(data, v.Mx)
	case *dns.SOA:
		data, err = appendName(nil, v.Ns)
		if err == nil {
			data, err = appendName(data, v.Mbox)
		}
		if err == nil {
			data = appendUint32(data, v.Serial)
			data = appendUint32(data, v.Refresh)
			data = appendUint32(data, v.Retry)
			data = appendUint32(data, v.Expire)
			data = appendUint32(data, v.Minttl)
		}
	case *dns.SRV:
		data = appendUint16(nil, v.Priority)
		data = appendUint16(data, v.Weight)
		data = appendUint16(data, v.Port)
		data, err = appendName(data, v.Target)
	case *dns.PTR:
		data, err = packName(v.Ptr)
	case *dns.CERT:
		data = appendUint16(nil, v.Type)
		data = appendUint16(data, v.KeyTag)
		data = append(data, v.Algorithm)
		var cert []byte
		cert, err = base64.StdEncoding.DecodeString(v.Certificate)
		data = append(data, cert...)
	default:
		data, err = rdataBytes(rr)
	}
	if err != nil {
		return nil, err
	}
	return &Record{Type: uint32(rr.Header().Rrtype), Expiration: exp, Data: data}, nil
}

// TranslateMsg converts a parsed DNS response into the records to
// store under owner. Only records whose name equals the owner count;
// glue for delegations is picked up from anywhere in the message. The
// result is deterministic for a given message and timestamps.
func TranslateMsg(msg *dns.Msg, owner string, minExpire, now time.Time) []Record {
	var out []Record
	ownerFqdn := dns.Fqdn(owner)

	for _, section := range [][]dns.RR{msg.Answer, msg.Ns, msg.Extra} {
		for _, rr := range section {
			if !strings.EqualFold(rr.Header().Name, ownerFqdn) {
				continue
			}
			switch v := rr.(type) {
			case *dns.NS:
				out = append(out, translateNS(v, msg, owner, minExpire, now)...)
			case *dns.DNAME:
				log.Printf("Translate: DNAME record for %s not supported, dropping", owner)
			case *dns.OPT:
				// pseudo-record, never stored
			default:
				rec, err := translateRR(rr, minExpire, now)
				if err != nil {
					log.Printf("Translate: failed to encode %s record for %s: %v",
						dns.TypeToString[rr.Header().Rrtype], owner, err)
					continue
				}
				if rec != nil {
					out = append(out, *rec)
				}
			}
		}
	}
	return out
}

// RecordTypeString names a record type for presentation. DNS type
// codes use their mnemonic; types above the 16-bit range have their
// own names.
func RecordTypeString(t uint32) string {
	switch t {
	case TypePKEY:
		return "PKEY"
	case TypeGNS2DNS:
		return "GNS2DNS"
	}
	if t <= 0xFFFF {
		if s, ok := dns.TypeToString[uint16(t)]; ok {
			return s
		}
	}
	return "TYPE" + strconv.FormatUint(uint64(t), 10)
}
