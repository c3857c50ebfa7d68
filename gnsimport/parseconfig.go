/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */

package gnsimport

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultCfgFile   = "/etc/gnsimport/gnsimport.yaml"
	DefaultZonesFile = "/etc/gnsimport/zones.yaml"
)

type Zconfig struct {
	Zones map[string]ZoneConf
}

func ParseConfig(conf *Config, cfgfile string) error {
	if Globals.Debug {
		log.Printf("Enter ParseConfig")
	}
	explicit := cfgfile != ""
	if cfgfile == "" {
		cfgfile = DefaultCfgFile
	}
	viper.SetConfigFile(cfgfile)

	viper.AutomaticEnv() // read in environment variables that match

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if explicit {
		log.Fatalf("Could not load config %s: Error: %v", cfgfile, err)
	}

	conf.Resolver.Address = viper.GetString("resolver.address")
	if Globals.Resolver != "" {
		conf.Resolver.Address = Globals.Resolver
	}
	conf.Resolver.Timeout = viper.GetInt("resolver.timeout")
	if conf.Resolver.Timeout < 1 {
		conf.Resolver.Timeout = 2
	}
	conf.Resolver.Retries = viper.GetInt("resolver.retries")
	if conf.Resolver.Retries < 1 {
		conf.Resolver.Retries = 3
	}
	conf.Resolver.Qtype = viper.GetString("resolver.qtype")
	if Globals.Qtype != "" {
		conf.Resolver.Qtype = Globals.Qtype
	}

	conf.Store.File = viper.GetString("store.file")
	conf.Store.MinExpire = viper.GetString("store.min-expire")
	if Globals.MinExpire != "" {
		conf.Store.MinExpire = Globals.MinExpire
	}
	conf.Apiserver.Address = viper.GetString("apiserver.address")
	conf.Log.File = viper.GetString("log.file")

	var configsections = make(map[string]interface{}, 2)
	configsections["resolver"] = conf.Resolver
	if err := ValidateBySection(conf, configsections, cfgfile); err != nil {
		return err
	}

	if Globals.Debug {
		log.Printf("ParseConfig: exit")
	}
	return nil
}

func ValidateBySection(conf *Config, configsections map[string]interface{}, cfgfile string) error {
	validate := validator.New()

	for k, data := range configsections {
		if Globals.Verbose {
			log.Printf("%s: Validating config for %s section\n", conf.AppName, k)
		}
		if err := validate.Struct(data); err != nil {
			return fmt.Errorf("config %s, section %s: missing required attributes:\n%v", cfgfile, k, err)
		}
	}
	return nil
}

// ParseZones reads the zone config file and populates the zone table.
// Each zone gets its key loaded from the configured seed, or a fresh
// one generated.
func ParseZones(conf *Config, zonesfile string) ([]string, error) {
	if Globals.Debug {
		log.Printf("ParseZones: enter")
	}
	if zonesfile == "" {
		zonesfile = DefaultZonesFile
	}
	log.Printf("ParseZones: using zone configs from file: %s\n", zonesfile)

	zonecfgs, err := os.ReadFile(zonesfile)
	if err != nil {
		return nil, fmt.Errorf("ParseZones: error from ReadFile: %v", err)
	}

	var zconfig Zconfig
	if err := yaml.Unmarshal(zonecfgs, &zconfig); err != nil {
		return nil, fmt.Errorf("ParseZones: error from yaml.Unmarshal(Zconfig): %v", err)
	}

	validate := validator.New()
	var allZones []string

	for zname, zconf := range zconfig.Zones {
		if zconf.Name == "" {
			zconf.Name = zname
		}
		if err := validate.Struct(zconf); err != nil {
			log.Printf("ParseZones: Zone %s: invalid config: %v. Zone ignored.", zname, err)
			continue
		}

		zone, err := NewZone(zconf)
		if err != nil {
			log.Printf("ParseZones: Zone %s: %v. Zone ignored.", zname, err)
			continue
		}
		Zones.Set(zone.Domain, zone)
		allZones = append(allZones, zone.Domain)
		log.Printf("ParseZones: zone %s: key id %s", zone.Domain, zone.KeyID)
	}

	if len(allZones) == 0 {
		return nil, fmt.Errorf("ParseZones: no usable zones in %s", zonesfile)
	}

	conf.Zones = zconfig.Zones
	if Globals.Debug {
		log.Printf("ParseZones: exit")
	}
	return allZones, nil
}

// NewZone builds a zone from its config. The key seed, when present,
// is a hex-encoded 32 byte ed25519 seed; without one a fresh key is
// generated (and the zone's contents will not survive a key change).
func NewZone(zconf ZoneConf) (*Zone, error) {
	domain := CanonicalName(zconf.Name)
	if domain == "" {
		return nil, fmt.Errorf("empty zone name")
	}

	var key ed25519.PrivateKey
	if zconf.KeySeed != "" {
		seed, err := hex.DecodeString(zconf.KeySeed)
		if err != nil {
			return nil, fmt.Errorf("bad key seed: %v", err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("bad key seed: want %d bytes, got %d", ed25519.SeedSize, len(seed))
		}
		key = ed25519.NewKeyFromSeed(seed)
	} else {
		_, k, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("key generation failed: %v", err)
		}
		key = k
	}

	pub := key.Public().(ed25519.PublicKey)
	keyid := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(pub)

	return &Zone{
		Domain: domain,
		KeyID:  keyid,
		Key:    key,
	}, nil
}

// SetupInternal creates the channel plumbing between the engines.
func SetupInternal(conf *Config) {
	conf.Internal = InternalConf{
		Store:      conf.Internal.Store,
		HostnameQ:  make(chan string, 1024),
		DnsQ:       make(chan DnsResponse, 2*PendingThreshold),
		StoreQ:     make(chan StoreRequest, PendingThreshold),
		StoreDoneQ: make(chan StoreResult, 2*PendingThreshold),
		APIStopCh:  make(chan struct{}),
	}
}
