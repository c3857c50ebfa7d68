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

var rootCmd = &cobra.Command{
	Use:   "zonewalk",
	Short: "Resolve hostnames from stdin and print the translated records as text",
	Long: `zonewalk is the presentation sibling of zoneimport: the same
resolution pipeline, but each name is resolved once and the resulting
records are printed instead of stored.`,

	Run: func(cmd *cobra.Command, args []string) {
		conf := &gnsimport.Config{
			AppName:    gnsimport.Globals.AppName,
			AppVersion: gnsimport.Globals.AppVersion,
		}

		if err := gnsimport.ParseConfig(conf, cfgFile); err != nil {
			log.Fatalf("Error parsing config: %v", err)
		}
		gnsimport.SetupCliLogging()

		if _, err := gnsimport.ParseZones(conf, zonesFile); err != nil {
			log.Fatalf("Error parsing zones: %v", err)
		}

		conf.Internal.Store = &gnsimport.TextStore{}

		if err := gnsimport.RunImport(conf, true, os.Stdin); err != nil {
			log.Fatalf("Walk failed: %v", err)
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
}
