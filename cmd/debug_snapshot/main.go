package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"infoblox-sync/core/config"
	"infoblox-sync/core/database"
	"infoblox-sync/core/reconcile"
	"infoblox-sync/feature/infoblox"
	"infoblox-sync/feature/inventory"
	"infoblox-sync/feature/ipam"

	"go.uber.org/zap"
)

// Loads both snapshots and prints their sizes. An optional argument is looked up as a
// network or address identifier on both sides.
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal(err)
	}

	client, err := infoblox.NewClient(cfg.Infoblox, zap.NewNop())
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal(err)
	}

	spec := &reconcile.Spec{
		Schema: ipam.Schema(),
		Source: infoblox.NewAdapter(client, nil),
		Target: inventory.NewAdapter(db, nil),
	}

	source, target, err := reconcile.LoadSnapshots(context.Background(), spec)
	if err != nil {
		log.Fatal(err)
	}

	for _, snap := range []*reconcile.Snapshot{source, target} {
		fmt.Printf("=== %s ===\n", snap.Source)
		for _, kind := range spec.Schema.Kinds() {
			fmt.Printf("%-10s %d\n", kind.Kind, snap.Len(kind.Kind))
		}
	}

	if len(os.Args) < 2 {
		return
	}
	id := os.Args[1]
	for _, snap := range []*reconcile.Snapshot{source, target} {
		for _, kind := range spec.Schema.Kinds() {
			if rec, ok := snap.Get(kind.Kind, id); ok {
				fmt.Printf("FOUND in %s: kind=%s ref=%s attrs=%v\n", snap.Source, rec.Kind, rec.Ref, rec.Attrs)
			}
		}
	}
}
