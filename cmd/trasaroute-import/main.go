// Command trasaroute-import fetches each configured region's poly file,
// address book source, and routing engine archive from the object store
// and writes them to a local data directory, recovering the responsibility
// the original's import/map_source.cc, import/osrm_archive.cc, and
// import/region_reader.cc held before the distillation dropped them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/trasaroute/trasaroute/internal/config"
	"github.com/trasaroute/trasaroute/internal/objectstore"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: trasaroute-import <config-file> <data-dir>")
		os.Exit(1)
	}

	ctx := context.Background()
	if err := run(ctx, os.Args[1], os.Args[2]); err != nil {
		fmt.Fprintln(os.Stderr, "trasaroute-import:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, dataDir string) error {
	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	objStore, err := objectstore.New()
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	for _, rc := range cfg.Regions {
		if !rc.IsEnabled() {
			continue
		}
		regionDir := filepath.Join(dataDir, rc.Name)
		if err := os.MkdirAll(regionDir, 0o755); err != nil {
			return fmt.Errorf("region %q: create data dir: %w", rc.Name, err)
		}

		if rc.Poly != "" {
			if err := fetchInto(ctx, objStore, rc.Poly, filepath.Join(regionDir, "region.poly")); err != nil {
				return fmt.Errorf("region %q: poly file: %w", rc.Name, err)
			}
		}
		for kind, uri := range rc.AddressBook {
			if err := fetchInto(ctx, objStore, uri, filepath.Join(regionDir, "addressbook."+kind)); err != nil {
				return fmt.Errorf("region %q: address book (%s): %w", rc.Name, kind, err)
			}
		}
		for kind, uri := range rc.OSRM {
			if err := fetchInto(ctx, objStore, uri, filepath.Join(regionDir, "osrm."+kind)); err != nil {
				return fmt.Errorf("region %q: routing engine archive (%s): %w", rc.Name, kind, err)
			}
		}

		fmt.Printf("region %q imported into %s\n", rc.Name, regionDir)
	}
	return nil
}

// fetchInto copies the object store's cached copy of uri to dest, so the
// server reads a plain local path regardless of the source scheme.
func fetchInto(ctx context.Context, objStore *objectstore.Store, uri, dest string) error {
	if uri == "" {
		return nil
	}
	src, err := objStore.Fetch(ctx, uri)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
