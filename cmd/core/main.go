// Package main provides a headless inspection tool for the local sync
// store. It opens the same database the desktop and mobile shells use
// and prints queue and cache state, for debugging a device image
// without starting the engine.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hkuo/vidsum/client/internal/cache"
	"github.com/hkuo/vidsum/client/internal/models"
	"github.com/hkuo/vidsum/client/internal/store"
	"github.com/hkuo/vidsum/client/internal/synclog"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	dataDir := flag.String("data", "./data", "data directory holding the local store")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" || cmd == "help" {
		usage()
		return
	}
	if cmd == "version" {
		fmt.Printf("vidsum core v%s\n", Version)
		return
	}

	kv, err := store.NewSQLiteStore(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer kv.Close()

	switch cmd {
	case "queue":
		if err := printQueue(kv); err != nil {
			fmt.Fprintf(os.Stderr, "queue: %v\n", err)
			os.Exit(1)
		}
	case "cache":
		if err := printCache(kv); err != nil {
			fmt.Fprintf(os.Stderr, "cache: %v\n", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage: core [-data DIR] <queue|cache|version>")
	fmt.Println("  queue    list pending mutations in enqueue order")
	fmt.Println("  cache    print per-namespace cache size and freshness")
	fmt.Println("  version  print the build version")
}

func printQueue(kv store.KV) error {
	log := synclog.New(kv)
	entries, err := log.ListPending()
	if err != nil {
		return err
	}
	fmt.Printf("%d pending mutation(s)\n", len(entries))
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return err
		}
		fmt.Println(string(line))
	}
	return nil
}

func printCache(kv store.KV) error {
	c := cache.New(kv, nil)
	for _, ns := range models.CacheNamespaces {
		info, err := c.Info(ns)
		if err != nil {
			return err
		}
		updated := "never"
		if info.LastUpdated > 0 {
			updated = time.Unix(info.LastUpdated, 0).Format(time.RFC3339)
		}
		fmt.Printf("%-12s %8d bytes  last updated %s\n", ns, info.SizeBytes, updated)
	}
	return nil
}
