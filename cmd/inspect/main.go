package main

import (
	"flag"
	"fmt"
	"os"

	"inboxd/pkg/logger"
	"inboxd/pkg/store"
)

// inspect dumps raw store keys for offline debugging. Point it at a copy of
// the DB, not a live one; pebble takes an exclusive lock.
func main() {
	var dbPath string
	var prefix string
	var key string
	flag.StringVar(&dbPath, "db", "", "path to the store directory")
	flag.StringVar(&prefix, "prefix", "", "key prefix to list (e.g. conv:, user:, autoreply:)")
	flag.StringVar(&key, "key", "", "print the raw value of one key and exit")
	flag.Parse()
	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}
	logger.Init()
	if err := store.Open(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	if key != "" {
		v, err := store.GetKey(key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "get failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(v)
		return
	}

	keys, err := store.ListKeys(prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
		os.Exit(1)
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", len(keys))
}
