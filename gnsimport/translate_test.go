/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */

package gnsimport

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func mustPackName(t *testing.T, name string) []byte {
	t.Helper()
	b, err := packName(name)
	if err != nil {
		t.Fatalf("packName(%s): %v", name, err)
	}
	return b
}

func nsResponse(owner, ns string, glue []dns.RR) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(owner), dns.TypeNS)
	m.Response = true
	m.Answer = append(m.Answer, &dns.NS{
		Hdr: dns.RR_Header{Name: dns.Fqdn(owner), Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: 3600},
		Ns:  dns.Fqdn(ns),
	})
	m.Extra = append(m.Extra, glue...)
	return m
}

func TestTranslateNSWithGlue(t *testing.T) {
	now := time.Now()
	glue := []dns.RR{
		&dns.A{
			Hdr: dns.RR_Header{Name: "ns1.example.net.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 1800},
			A:   net.ParseIP("192.0.2.1").To4(),
		},
	}
	msg := nsResponse("foo.gnu", "ns1.example.net", glue)

	recs := TranslateMsg(msg, "foo.gnu", now, now)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Type != TypeGNS2DNS {
		t.Errorf("expected GNS2DNS type, got %d", rec.Type)
	}

	want := append(mustPackName(t, "foo.gnu."), mustPackName(t, "192.0.2.1.")...)
	if !bytes.Equal(rec.Data, want) {
		t.Errorf("delegation payload mismatch:\ngot  %v\nwant %v", rec.Data, want)
	}

	// glue TTL (1800) governs the expiration, not the NS TTL (3600)
	wantExp := now.Add(1800 * time.Second)
	if rec.Expiration.Sub(wantExp) > time.Second || wantExp.Sub(rec.Expiration) > time.Second {
		t.Errorf("expected expiration near %v, got %v", wantExp, rec.Expiration)
	}
}

func TestTranslateNSWithoutGlue(t *testing.T) {
	now := time.Now()
	msg := nsResponse("foo.gnu", "ns1.elsewhere.org", nil)

	recs := TranslateMsg(msg, "foo.gnu", now, now)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	want := append(mustPackName(t, "foo.gnu."), mustPackName(t, "ns1.elsewhere.org.")...)
	if !bytes.Equal(recs[0].Data, want) {
		t.Errorf("out-of-zone delegation payload mismatch")
	}
}

func TestTranslateNSCNAMEGlue(t *testing.T) {
	now := time.Now()
	glue := []dns.RR{
		&dns.CNAME{
			Hdr:    dns.RR_Header{Name: "ns1.example.net.", Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 600},
			Target: "real-ns.example.net.",
		},
	}
	msg := nsResponse("foo.gnu", "ns1.example.net", glue)

	recs := TranslateMsg(msg, "foo.gnu", now, now)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	want := append(mustPackName(t, "foo.gnu."), mustPackName(t, "real-ns.example.net.")...)
	if !bytes.Equal(recs[0].Data, want) {
		t.Errorf("cname glue payload mismatch")
	}
}

func TestTranslateExpiredGlueFallsBack(t *testing.T) {
	now := time.Now()
	glue := []dns.RR{
		&dns.A{
			Hdr: dns.RR_Header{Name: "ns1.example.net.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 0},
			A:   net.ParseIP("192.0.2.1").To4(),
		},
	}
	msg := nsResponse("foo.gnu", "ns1.example.net", glue)

	recs := TranslateMsg(msg, "foo.gnu", now, now)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	// expired glue is unusable, so the name form must be used
	want := append(mustPackName(t, "foo.gnu."), mustPackName(t, "ns1.example.net.")...)
	if !bytes.Equal(recs[0].Data, want) {
		t.Errorf("expected name-form delegation after expired glue")
	}
}

func TestTranslateSkipsForeignNames(t *testing.T) {
	now := time.Now()
	m := new(dns.Msg)
	m.Answer = append(m.Answer, &dns.A{
		Hdr: dns.RR_Header{Name: "other.gnu.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 300},
		A:   net.ParseIP("192.0.2.7").To4(),
	})
	if recs := TranslateMsg(m, "foo.gnu", now, now); len(recs) != 0 {
		t.Errorf("expected no records for foreign owner, got %d", len(recs))
	}
}

func TestTranslateZeroTTLDropped(t *testing.T) {
	now := time.Now()
	m := new(dns.Msg)
	m.Answer = append(m.Answer, &dns.A{
		Hdr: dns.RR_Header{Name: "foo.gnu.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 0},
		A:   net.ParseIP("192.0.2.7").To4(),
	})
	if recs := TranslateMsg(m, "foo.gnu", now, now); len(recs) != 0 {
		t.Errorf("expected zero-TTL record to be dropped, got %d records", len(recs))
	}
}

func TestTranslateMinimumExpiration(t *testing.T) {
	now := time.Now()
	minExpire := now.Add(2 * time.Hour)
	m := new(dns.Msg)
	m.Answer = append(m.Answer, &dns.A{
		Hdr: dns.RR_Header{Name: "foo.gnu.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
		A:   net.ParseIP("192.0.2.7").To4(),
	})
	recs := TranslateMsg(m, "foo.gnu", minExpire, now)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Expiration.Before(minExpire) {
		t.Errorf("expiration %v below the configured floor %v", recs[0].Expiration, minExpire)
	}
}

func TestTranslateMX(t *testing.T) {
	now := time.Now()
	m := new(dns.Msg)
	m.Answer = append(m.Answer, &dns.MX{
		Hdr:        dns.RR_Header{Name: "foo.gnu.", Rrtype: dns.TypeMX, Class: dns.ClassINET, Ttl: 300},
		Preference: 10,
		Mx:         "mail.foo.gnu.",
	})
	recs := TranslateMsg(m, "foo.gnu", now, now)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	want := append([]byte{0, 10}, mustPackName(t, "mail.foo.gnu.")...)
	if !bytes.Equal(recs[0].Data, want) {
		t.Errorf("MX payload mismatch:\ngot  %v\nwant %v", recs[0].Data, want)
	}
}

func TestTranslateSRV(t *testing.T) {
	now := time.Now()
	m := new(dns.Msg)
	m.Answer = append(m.Answer, &dns.SRV{
		Hdr:      dns.RR_Header{Name: "_sip._tcp.foo.gnu.", Rrtype: dns.TypeSRV, Class: dns.ClassINET, Ttl: 300},
		Priority: 1,
		Weight:   2,
		Port:     5060,
		Target:   "sip.foo.gnu.",
	})
	recs := TranslateMsg(m, "_sip._tcp.foo.gnu", now, now)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	want := []byte{0, 1, 0, 2, 0x13, 0xc4}
	want = append(want, mustPackName(t, "sip.foo.gnu.")...)
	if !bytes.Equal(recs[0].Data, want) {
		t.Errorf("SRV payload mismatch:\ngot  %v\nwant %v", recs[0].Data, want)
	}
}

func TestTranslateSOA(t *testing.T) {
	now := time.Now()
	m := new(dns.Msg)
	m.Answer = append(m.Answer, &dns.SOA{
		Hdr:     dns.RR_Header{Name: "foo.gnu.", Rrtype: dns.TypeSOA, Class: dns.ClassINET, Ttl: 300},
		Ns:      "ns1.foo.gnu.",
		Mbox:    "hostmaster.foo.gnu.",
		Serial:  2026010100,
		Refresh: 7200,
		Retry:   3600,
		Expire:  1209600,
		Minttl:  300,
	})
	recs := TranslateMsg(m, "foo.gnu", now, now)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	want := append(mustPackName(t, "ns1.foo.gnu."), mustPackName(t, "hostmaster.foo.gnu.")...)
	want = appendUint32(want, 2026010100)
	want = appendUint32(want, 7200)
	want = appendUint32(want, 3600)
	want = appendUint32(want, 1209600)
	want = appendUint32(want, 300)
	if !bytes.Equal(recs[0].Data, want) {
		t.Errorf("SOA payload mismatch:\ngot  %v\nwant %v", recs[0].Data, want)
	}
}

func TestTranslateCNAME(t *testing.T) {
	now := time.Now()
	m := new(dns.Msg)
	m.Answer = append(m.Answer, &dns.CNAME{
		Hdr:    dns.RR_Header{Name: "foo.gnu.", Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 300},
		Target: "bar.gnu.",
	})
	recs := TranslateMsg(m, "foo.gnu", now, now)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Type != uint32(dns.TypeCNAME) {
		t.Errorf("expected CNAME type code, got %d", recs[0].Type)
	}
	if !bytes.Equal(recs[0].Data, mustPackName(t, "bar.gnu.")) {
		t.Errorf("CNAME payload mismatch")
	}
}

func TestTranslateDNAMEDropped(t *testing.T) {
	now := time.Now()
	m := new(dns.Msg)
	m.Answer = append(m.Answer, &dns.DNAME{
		Hdr:    dns.RR_Header{Name: "foo.gnu.", Rrtype: dns.TypeDNAME, Class: dns.ClassINET, Ttl: 300},
		Target: "bar.gnu.",
	})
	if recs := TranslateMsg(m, "foo.gnu", now, now); len(recs) != 0 {
		t.Errorf("expected DNAME to be dropped, got %d records", len(recs))
	}
}

func TestTranslateRawRdata(t *testing.T) {
	now := time.Now()
	m := new(dns.Msg)
	m.Answer = append(m.Answer, &dns.A{
		Hdr: dns.RR_Header{Name: "foo.gnu.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 300},
		A:   net.ParseIP("192.0.2.7").To4(),
	})
	m.Answer = append(m.Answer, &dns.TXT{
		Hdr: dns.RR_Header{Name: "foo.gnu.", Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 300},
		Txt: []string{"hello"},
	})
	recs := TranslateMsg(m, "foo.gnu", now, now)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if !bytes.Equal(recs[0].Data, []byte{192, 0, 2, 7}) {
		t.Errorf("A rdata mismatch: %v", recs[0].Data)
	}
	if !bytes.Equal(recs[1].Data, append([]byte{5}, []byte("hello")...)) {
		t.Errorf("TXT rdata mismatch: %v", recs[1].Data)
	}
}

func TestTranslateDeterministic(t *testing.T) {
	now := time.Now()
	glue := []dns.RR{
		&dns.A{
			Hdr: dns.RR_Header{Name: "ns1.example.net.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 1800},
			A:   net.ParseIP("192.0.2.1").To4(),
		},
	}
	msg := nsResponse("foo.gnu", "ns1.example.net", glue)

	a := TranslateMsg(msg, "foo.gnu", now, now)
	b := TranslateMsg(msg, "foo.gnu", now, now)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic record count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Type != b[i].Type || !a[i].Expiration.Equal(b[i].Expiration) || !bytes.Equal(a[i].Data, b[i].Data) {
			t.Errorf("record %d differs between runs", i)
		}
	}
}

func TestRecordTypeString(t *testing.T) {
	tests := []struct {
		in   uint32
		want string
	}{
		{uint32(dns.TypeA), "A"},
		{uint32(dns.TypeNS), "NS"},
		{TypePKEY, "PKEY"},
		{TypeGNS2DNS, "GNS2DNS"},
		{99999, "TYPE99999"},
	}
	for _, tc := range tests {
		if got := RecordTypeString(tc.in); got != tc.want {
			t.Errorf("RecordTypeString(%d) = %s, expected %s", tc.in, got, tc.want)
		}
	}
}
