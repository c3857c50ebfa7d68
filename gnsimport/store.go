/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */

package gnsimport

import (
	"context"
	"database/sql"
	"encoding/base32"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/miekg/dns"
)

// RecordStore is the persistence boundary. Implementations must be
// safe for use from the store engine goroutine only.
type RecordStore interface {
	Lookup(zone *Zone, label string) ([]Record, error)
	Store(zone *Zone, label string, records []Record) error
	Close() error
}

var DefaultTables = map[string]string{

	"Records": `CREATE TABLE IF NOT EXISTS 'Records' (
id		  INTEGER PRIMARY KEY,
zone		  TEXT,
label		  TEXT,
rrtype		  INTEGER,
expires		  INTEGER,
flags		  INTEGER,
data		  BLOB
)`,

	"RecordsIdx": `CREATE INDEX IF NOT EXISTS 'RecordsIdx' ON 'Records' (zone, label)`,

	// One row per configured zone, so a later run can detect key changes.
	"Zones": `CREATE TABLE IF NOT EXISTS 'Zones' (
id		  INTEGER PRIMARY KEY,
domain		  TEXT,
keyid		  TEXT,
UNIQUE (domain)
)`,
}

type NamestoreDB struct {
	DB *sql.DB
	mu sync.Mutex
}

func dbSetupTables(db *sql.DB) {
	if Globals.Verbose {
		log.Printf("Setting up missing tables\n")
	}

	for t, s := range DefaultTables {
		stmt, err := db.Prepare(s)
		if err != nil {
			log.Printf("dbSetupTables: Error from %s schema \"%s\": %v\n", t, s, err)
			continue
		}
		_, err = stmt.Exec()
		if err != nil {
			log.Fatalf("Failed to set up db schema: %s. Error: %v", s, err)
		}
	}
}

func NewNamestoreDB(dbfile string, force bool) (*NamestoreDB, error) {
	if dbfile == "" {
		return nil, fmt.Errorf("error: DB filename unspecified")
	}
	if Globals.Verbose {
		log.Printf("NewNamestoreDB: using sqlite db in file %s\n", dbfile)
	}
	if _, err := os.Stat(dbfile); os.IsNotExist(err) {
		f, err := os.OpenFile(dbfile, os.O_CREATE|os.O_WRONLY, 0664)
		if err != nil {
			return nil, fmt.Errorf("NewNamestoreDB: Error creating db file %s: %v", dbfile, err)
		}
		f.Close()
	}
	if err := os.Chmod(dbfile, 0664); err != nil {
		return nil, fmt.Errorf("NewNamestoreDB: Error trying to ensure that db %s is writable: %v", dbfile, err)
	}
	db, err := sql.Open("sqlite3", dbfile)
	if err != nil {
		return nil, fmt.Errorf("NewNamestoreDB: Error from sql.Open: %v", err)
	}

	if force {
		for table := range DefaultTables {
			sqlcmd := "DROP TABLE IF EXISTS " + table
			_, err = db.Exec(sqlcmd)
			if err != nil {
				return nil, fmt.Errorf("NewNamestoreDB: Error when dropping table %s: %v", table, err)
			}
		}
	}
	dbSetupTables(db)
	return &NamestoreDB{DB: db}, nil
}

// RegisterZone records the zone identity so later runs can detect a
// changed key for the same domain.
func (ndb *NamestoreDB) RegisterZone(zone *Zone) error {
	var keyid string
	row := ndb.DB.QueryRow("SELECT keyid FROM Zones WHERE domain=?", zone.Domain)
	switch err := row.Scan(&keyid); err {
	case sql.ErrNoRows:
		_, err := ndb.DB.Exec("INSERT INTO Zones (domain, keyid) VALUES (?, ?)", zone.Domain, zone.KeyID)
		return err
	case nil:
		if keyid != zone.KeyID {
			return fmt.Errorf("zone %s already stored under a different key (%s)", zone.Domain, keyid)
		}
		return nil
	default:
		return err
	}
}

func (ndb *NamestoreDB) Lookup(zone *Zone, label string) ([]Record, error) {
	ndb.mu.Lock()
	defer ndb.mu.Unlock()

	rows, err := ndb.DB.Query(
		"SELECT rrtype, expires, flags, data FROM Records WHERE zone=? AND label=? AND expires>? ORDER BY id",
		zone.Domain, label, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("NamestoreDB.Lookup: %v", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		var expires int64
		if err := rows.Scan(&rec.Type, &expires, &rec.Flags, &rec.Data); err != nil {
			return nil, fmt.Errorf("NamestoreDB.Lookup: scan: %v", err)
		}
		rec.Expiration = time.Unix(expires, 0)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Store replaces all records under (zone, label) in one transaction.
func (ndb *NamestoreDB) Store(zone *Zone, label string, records []Record) error {
	ndb.mu.Lock()
	defer ndb.mu.Unlock()

	tx, err := ndb.DB.Begin()
	if err != nil {
		return fmt.Errorf("NamestoreDB.Store: begin: %v", err)
	}
	if _, err := tx.Exec("DELETE FROM Records WHERE zone=? AND label=?", zone.Domain, label); err != nil {
		tx.Rollback()
		return fmt.Errorf("NamestoreDB.Store: delete: %v", err)
	}
	for _, rec := range records {
		_, err := tx.Exec(
			"INSERT INTO Records (zone, label, rrtype, expires, flags, data) VALUES (?, ?, ?, ?, ?, ?)",
			zone.Domain, label, rec.Type, rec.Expiration.Unix(), rec.Flags, rec.Data)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("NamestoreDB.Store: insert: %v", err)
		}
	}
	return tx.Commit()
}

func (ndb *NamestoreDB) Close() error {
	return ndb.DB.Close()
}

// TextStore is the zonewalk sink: it prints record sets instead of
// persisting them. Lookup always comes back empty, so every name is
// resolved fresh.
type TextStore struct {
	mu  sync.Mutex
	Out io.Writer // defaults to stdout
}

func (ts *TextStore) Lookup(zone *Zone, label string) ([]Record, error) {
	return nil, nil
}

func (ts *TextStore) Store(zone *Zone, label string, records []Record) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := ts.Out
	if out == nil {
		out = os.Stdout
	}
	name := label + "." + zone.Domain
	for _, rec := range records {
		fmt.Fprintf(out, "%s %s %s\n", name, RecordTypeString(rec.Type), RecordValueString(rec))
	}
	return nil
}

func (ts *TextStore) Close() error {
	return nil
}

// RecordValueString renders a record payload for presentation. Types
// with a well-known layout are decoded; everything else is base32.
func RecordValueString(rec Record) string {
	switch rec.Type {
	case uint32(dns.TypeA):
		if len(rec.Data) == net.IPv4len {
			return net.IP(rec.Data).String()
		}
	case uint32(dns.TypeAAAA):
		if len(rec.Data) == net.IPv6len {
			return net.IP(rec.Data).String()
		}
	case uint32(dns.TypeCNAME), uint32(dns.TypePTR), uint32(dns.TypeNS):
		if name, _, err := dns.UnpackDomainName(rec.Data, 0); err == nil {
			return name
		}
	case TypeGNS2DNS:
		name, off, err := dns.UnpackDomainName(rec.Data, 0)
		if err != nil {
			break
		}
		server, _, err := dns.UnpackDomainName(rec.Data, off)
		if err != nil {
			break
		}
		return name + "@" + server
	}
	return base32.StdEncoding.EncodeToString(rec.Data)
}

// StoreEngine serializes all access to the record store. Requests
// arrive on StoreQ; every request produces exactly one result on
// StoreDoneQ.
func StoreEngine(ctx context.Context, conf *Config) error {
	store := conf.Internal.Store
	storeQ := conf.Internal.StoreQ
	doneQ := conf.Internal.StoreDoneQ

	log.Printf("StoreEngine: starting")
	for {
		select {
		case <-ctx.Done():
			log.Printf("StoreEngine: terminating")
			return nil
		case req := <-storeQ:
			res := StoreResult{Cmd: req.Cmd, Cls: req.Cls, Start: req.Start}
			switch req.Cmd {
			case StoreCmdLookup:
				res.Records, res.Error = store.Lookup(req.Zone, req.Label)
			case StoreCmdStore:
				res.Error = store.Store(req.Zone, req.Label, req.Records)
			default:
				res.Error = fmt.Errorf("StoreEngine: unknown command %d", req.Cmd)
			}
			select {
			case doneQ <- res:
			case <-ctx.Done():
				log.Printf("StoreEngine: terminating")
				return nil
			}
		}
	}
}
