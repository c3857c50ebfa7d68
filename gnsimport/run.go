/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */

package gnsimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// RunImport runs the whole pipeline: input reader, store engine, stub
// resolver and the importer itself. The caller has parsed config and
// zones and placed a RecordStore in conf.Internal.Store. Blocks until
// the input is fully processed (one-shot mode) or until SIGINT or
// SIGTERM; the final summary is always printed.
func RunImport(conf *Config, oneShot bool, input io.Reader) error {
	if conf.Internal.Store == nil {
		return fmt.Errorf("RunImport: no record store configured")
	}
	SetupInternal(conf)

	stub, err := NewStubResolver(conf.Resolver.Address,
		time.Duration(conf.Resolver.Timeout)*time.Second,
		conf.Resolver.Retries, conf.Internal.DnsQ)
	if err != nil {
		return err
	}

	imp, err := NewImporter(conf, stub, oneShot)
	if err != nil {
		stub.Close()
		return err
	}

	APIdispatcher(conf, &imp.Stats)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := StoreEngine(ctx, conf); err != nil {
			log.Printf("StoreEngine: %v", err)
		}
	}()
	go func() {
		if err := ReadHostnames(ctx, input, conf.Internal.HostnameQ); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("ReadHostnames: %v", err)
		}
	}()

	err = imp.Run(ctx)
	stop()
	close(conf.Internal.APIStopCh)
	stub.Close()
	if cerr := conf.Internal.Store.Close(); cerr != nil {
		log.Printf("RunImport: error closing store: %v", cerr)
	}
	imp.LogSummary()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
