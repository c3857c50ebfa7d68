/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */
package gnsimport

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type StatsResponse struct {
	Time         time.Time
	AppName      string
	AppVersion   string
	Rejected     uint64
	Duplicates   uint64
	Cached       uint64
	Lookups      uint64
	Failures     uint64
	RecordSets   uint64
	Records      uint64
	StoreErrors  uint64
	DnsLatency   LatencySnapshot
	StoreLatency LatencySnapshot
}

type LatencySnapshot struct {
	Count uint64
	Avg   string
	Min   string
	Max   string
}

func latencySnapshot(ls *LatencyStats) LatencySnapshot {
	count, avg, min, max := ls.Snapshot()
	return LatencySnapshot{
		Count: count,
		Avg:   avg.String(),
		Min:   min.String(),
		Max:   max.String(),
	}
}

func APIstats(conf *Config, stats *ImportStats) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatsResponse{
			Time:         time.Now(),
			AppName:      conf.AppName,
			AppVersion:   conf.AppVersion,
			Rejected:     stats.Rejected.Load(),
			Duplicates:   stats.Duplicates.Load(),
			Cached:       stats.Cached.Load(),
			Lookups:      stats.Lookups.Load(),
			Failures:     stats.Failures.Load(),
			RecordSets:   stats.RecordSets.Load(),
			Records:      stats.Records.Load(),
			StoreErrors:  stats.StoreErrors.Load(),
			DnsLatency:   latencySnapshot(&stats.DnsLatency),
			StoreLatency: latencySnapshot(&stats.StoreLatency),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func SetupRouter(conf *Config, stats *ImportStats) *mux.Router {
	r := mux.NewRouter().StrictSlash(true)
	sr := r.PathPrefix("/api/v1").Subrouter()
	sr.HandleFunc("/stats", APIstats(conf, stats)).Methods("GET")
	return r
}

// APIdispatcher serves the stats endpoint. A no-op when no listen
// address is configured, which is the normal case for one-off runs.
// Closing conf.Internal.APIStopCh shuts the server down.
func APIdispatcher(conf *Config, stats *ImportStats) {
	address := conf.Apiserver.Address
	if address == "" {
		if Globals.Verbose {
			log.Printf("APIdispatcher: no address configured, not starting")
		}
		return
	}

	srv := &http.Server{Addr: address, Handler: SetupRouter(conf, stats)}
	go func() {
		log.Println("Starting API dispatcher. Listening on", address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()
	go func() {
		<-conf.Internal.APIStopCh
		srv.Close()
	}()
}
