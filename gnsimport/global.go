/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */
package gnsimport

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

type GlobalStuff struct {
	Verbose    bool
	Debug      bool
	Resolver   string
	Qtype      string
	MinExpire  string // duration string from -m, parsed in ParseConfig
	AppName    string
	AppVersion string
}

var Globals = GlobalStuff{
	Verbose: false,
	Debug:   false,
	Qtype:   "NS",
}

// Zones holds the zone table; keyed by the apex domain in canonical
// (lower case, no trailing dot) form.
var Zones = cmap.New[*Zone]()
