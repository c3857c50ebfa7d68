/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */
package main

import (
	"github.com/askelof/gnsimport/zoneimport/cmd"

	"github.com/askelof/gnsimport/gnsimport"
)

const appName = "zoneimport"

var appVersion = "unknown"
var appDate = "unknown"

func main() {
	gnsimport.Globals.AppName = appName
	gnsimport.Globals.AppVersion = appVersion
	cmd.Execute(appName, appVersion, appDate)
}
