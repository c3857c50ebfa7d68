/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */

package gnsimport

import (
	"bufio"
	"context"
	"io"
	"log"
	"strings"
	"time"
)

// ReadHostnames feeds names from r (one per line, blanks and comments
// skipped) into the hostname queue and closes it at EOF. Progress is
// reported at intervals so long imports show signs of life.
func ReadHostnames(ctx context.Context, r io.Reader, hostnameQ chan<- string) error {
	defer close(hostnameQ)

	start := time.Now()
	count := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		select {
		case hostnameQ <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
		count++
		if count%ReadProgressInterval == 0 {
			log.Printf("Read %d domain names in %s", count, time.Since(start).Round(time.Millisecond))
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("ReadHostnames: input error after %d names: %v", count, err)
		return err
	}
	if Globals.Verbose {
		log.Printf("Read %d domain names in %s", count, time.Since(start).Round(time.Millisecond))
	}
	return nil
}
