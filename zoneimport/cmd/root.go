/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */
package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/askelof/gnsimport/gnsimport"
)

var cfgFile string
var zonesFile string
var dbFile string
var forceInit bool

var rootCmd = &cobra.Command{
	Use:   "zoneimport",
	Short: "Import DNS zone contents into a GNS-style namestore, refreshing names as their records expire",
	Long: `zoneimport reads hostnames from stdin, resolves them against an
upstream DNS resolver and stores the translated records in a local
namestore. Each name is re-resolved when its records expire, so a
running instance keeps the namestore current indefinitely.`,

	Run: func(cmd *cobra.Command, args []string) {
		conf := &gnsimport.Config{
			AppName:    gnsimport.Globals.AppName,
			AppVersion: gnsimport.Globals.AppVersion,
		}

		if err := gnsimport.ParseConfig(conf, cfgFile); err != nil {
			log.Fatalf("Error parsing config: %v", err)
		}
		if conf.Log.File != "" {
			gnsimport.SetupLogging(conf.Log.File)
		} else {
			gnsimport.SetupCliLogging()
		}

		if _, err := gnsimport.ParseZones(conf, zonesFile); err != nil {
			log.Fatalf("Error parsing zones: %v", err)
		}

		if dbFile != "" {
			conf.Store.File = dbFile
		}
		if conf.Store.File == "" {
			conf.Store.File = "gnsimport.db"
		}
		store, err := gnsimport.NewNamestoreDB(conf.Store.File, forceInit)
		if err != nil {
			log.Fatalf("Error from NewNamestoreDB: %v", err)
		}
		for _, domain := range gnsimport.Zones.Keys() {
			zone, _ := gnsimport.Zones.Get(domain)
			if err := store.RegisterZone(zone); err != nil {
				log.Fatalf("Error registering zone %s: %v", domain, err)
			}
		}
		conf.Internal.Store = store

		if err := gnsimport.RunImport(conf, false, os.Stdin); err != nil {
			log.Fatalf("Import failed: %v", err)
		}
	},
}

func Execute(appName, appVersion, appDate string) {
	rootCmd.Version = fmt.Sprintf("%s (%s)", appVersion, appDate)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&gnsimport.Globals.Verbose, "verbose", "v", false, "Verbose mode")
	rootCmd.PersistentFlags().BoolVarP(&gnsimport.Globals.Debug, "debug", "d", false, "Debugging output")
	rootCmd.PersistentFlags().StringVarP(&gnsimport.Globals.Resolver, "server", "s", "", "Address (addr:port) of the upstream DNS resolver")
	rootCmd.PersistentFlags().StringVarP(&gnsimport.Globals.Qtype, "qtype", "t", "", "DNS query type (default NS)")
	rootCmd.PersistentFlags().StringVarP(&gnsimport.Globals.MinExpire, "minimum-expiration", "m", "", "Minimum record expiration (duration, e.g. 1h)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default "+gnsimport.DefaultCfgFile+")")
	rootCmd.PersistentFlags().StringVar(&zonesFile, "zones", "", "Zone config file (default "+gnsimport.DefaultZonesFile+")")
	rootCmd.Flags().StringVar(&dbFile, "db", "", "Namestore sqlite file (default gnsimport.db)")
	rootCmd.Flags().BoolVar(&forceInit, "force-init", false, "Drop and recreate all namestore tables")
}
