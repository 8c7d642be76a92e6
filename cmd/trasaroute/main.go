// Command trasaroute runs the region routing and geocoding service.
//
// Usage: trasaroute <config-file> [rpc|worker|both|none]
//
// rpc starts only the JSON-RPC/WebSocket front end, worker starts only the
// async trip worker pool, both starts both, and none (the default) loads
// the configuration and fetches region data without serving anything —
// useful for validating a config file or warming the object store cache.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trasaroute/trasaroute/internal/addressbook"
	"github.com/trasaroute/trasaroute/internal/auth"
	"github.com/trasaroute/trasaroute/internal/config"
	"github.com/trasaroute/trasaroute/internal/decompose"
	"github.com/trasaroute/trasaroute/internal/frontend"
	"github.com/trasaroute/trasaroute/internal/geo"
	"github.com/trasaroute/trasaroute/internal/geocoder"
	"github.com/trasaroute/trasaroute/internal/geocoder/fts"
	"github.com/trasaroute/trasaroute/internal/geocoder/prefixtree"
	"github.com/trasaroute/trasaroute/internal/health"
	"github.com/trasaroute/trasaroute/internal/logging"
	"github.com/trasaroute/trasaroute/internal/objectstore"
	"github.com/trasaroute/trasaroute/internal/routing"
	"github.com/trasaroute/trasaroute/internal/scheduler"
	"github.com/trasaroute/trasaroute/internal/services"
	"github.com/trasaroute/trasaroute/internal/store"
	"github.com/trasaroute/trasaroute/internal/telemetry"
	"github.com/trasaroute/trasaroute/internal/worker"
)

type role int

const (
	roleNone role = iota
	roleRPC
	roleWorker
	roleBoth
)

func parseRole(s string) (role, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return roleNone, nil
	case "rpc":
		return roleRPC, nil
	case "worker":
		return roleWorker, nil
	case "both":
		return roleBoth, nil
	default:
		return roleNone, fmt.Errorf("unknown role %q (want rpc|worker|both|none)", s)
	}
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: trasaroute <config-file> [rpc|worker|both|none]")
		os.Exit(1)
	}

	roleArg := ""
	if len(os.Args) >= 3 {
		roleArg = os.Args[2]
	}
	r, err := parseRole(roleArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], r); err != nil {
		fmt.Fprintln(os.Stderr, "trasaroute:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, r role) error {
	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.AWS.LogLevel)
	logger.Info("starting", "config", configPath, "role", r)

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "trasaroute",
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	objStore, err := objectstore.New()
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	locator, regionNames, err := buildLocator(ctx, objStore, cfg)
	if err != nil {
		return fmt.Errorf("build region locator: %w", err)
	}

	backend, err := buildGeocoderBackend(ctx, objStore, cfg, regionNames)
	if err != nil {
		return fmt.Errorf("build geocoder backend: %w", err)
	}

	labeler := decompose.NewHTTPLabeler(cfg.Decomposer.NEREndpoint, nil)
	facade := geocoder.NewFacade(locator, labeler, backend)
	if cfg.Cache.RedisAddr != "" {
		facade = facade.WithCache(geocoder.NewResultCache(redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})))
	}

	routingPool, err := buildRoutingPool(cfg, logger)
	if err != nil {
		return fmt.Errorf("build routing pool: %w", err)
	}

	if r == roleNone {
		logger.Info("config validated, region data fetched; exiting (role=none)")
		return nil
	}

	sched, err := scheduler.New(ctx, scheduler.Config{
		ConnectionString: cfg.AWS.Queues.PendingRoutes,
		QueueName:        "pending_routes",
	})
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer sched.Close(ctx)

	resultStore, err := store.New(ctx, store.Config{
		Endpoint:      cfg.AWS.Tables.Trips,
		DatabaseName:  "trasaroute",
		ContainerName: "trips",
	})
	if err != nil {
		return fmt.Errorf("result store: %w", err)
	}

	var workerPool *worker.Pool
	if r == roleWorker || r == roleBoth {
		workerPool = worker.New(sched, routingPool, resultStore, logger, worker.Config{
			WorkerConcurrency: cfg.Routing.WorkerConcurrency,
		})
	}

	var httpServer *http.Server
	if r == roleRPC || r == roleBoth {
		authConfigs := make([]auth.EntryConfig, 0, len(cfg.RPC.Auth))
		for _, a := range cfg.RPC.Auth {
			authConfigs = append(authConfigs, auth.EntryConfig{
				Type:     a.Type,
				Name:     a.Name,
				Issuer:   a.Issuer,
				Audience: a.Audience,
				KeysURL:  a.KeysURL,
				Keys:     a.Keys,
			})
		}
		keySet, err := auth.NewKeySet(ctx, authConfigs)
		if err != nil {
			return fmt.Errorf("auth key set: %w", err)
		}
		go keySet.Run(ctx, func(err error) { logger.Error("key set refresh failed", "error", err) })

		tripSvc := &services.Trip{
			Locator:      locator,
			RoutingPool:  routingPool,
			Scheduler:    sched,
			Store:        resultStore,
			MaxWaypoints: cfg.Routing.MaxWaypoints,
		}
		geocodeSvc := &services.Geocode{Facade: facade}
		distanceSvc := &services.Distance{Locator: locator, RoutingPool: routingPool}

		server := frontend.NewServer(keySet, frontend.BuildServiceMap(frontend.Services{
			Trip:     tripSvc,
			Geocode:  geocodeSvc,
			Distance: distanceSvc,
		}), logger, health.Check{
			Name:     "result_store",
			Critical: true,
			CheckFn: func(ctx context.Context) error {
				_, err := resultStore.Get(ctx, "__healthcheck__")
				if err == store.ErrNotFound {
					return nil
				}
				return err
			},
		}, health.Check{
			Name:     "routing_engines",
			Critical: false,
			CheckFn: func(ctx context.Context) error {
				var open []string
				for region, m := range routingPool.BreakerMetrics() {
					if m.State == "open" {
						open = append(open, region)
					}
				}
				if len(open) > 0 {
					return fmt.Errorf("circuit open for region(s): %s", strings.Join(open, ", "))
				}
				return nil
			},
		})

		addr := fmt.Sprintf("%s:%d", cfg.RPC.Address, cfg.RPC.Port)
		httpServer = &http.Server{Addr: addr, Handler: server.Router()}
		go func() {
			logger.Info("listening", "addr", addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("listener stopped", "error", err)
			}
		}()
	}

	if workerPool != nil {
		go workerPool.Run(ctx)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}
	return nil
}

const shutdownTimeout = 10 * time.Second

// buildLocator fetches each enabled region's poly file and builds the
// region locator.
func buildLocator(ctx context.Context, objStore *objectstore.Store, cfg *config.Config) (*geo.Locator, []string, error) {
	var regions []geo.Region
	var names []string
	for _, rc := range cfg.Regions {
		if !rc.IsEnabled() {
			continue
		}
		path, err := objStore.Fetch(ctx, rc.Poly)
		if err != nil {
			return nil, nil, fmt.Errorf("region %q: fetch poly file: %w", rc.Name, err)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("region %q: open poly file: %w", rc.Name, err)
		}
		poly, err := geo.ParsePolyFile(f, rc.Name)
		f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("region %q: parse poly file: %w", rc.Name, err)
		}
		regions = append(regions, geo.Region{Name: rc.Name, Polygon: poly})
		names = append(names, rc.Name)
	}
	locator, err := geo.NewLocator(regions)
	if err != nil {
		return nil, nil, err
	}
	return locator, names, nil
}

// buildGeocoderBackend builds either the FTS or prefix-tree backend per
// cfg.Geocoder.Mode, fetching each region's address book source.
func buildGeocoderBackend(ctx context.Context, objStore *objectstore.Store, cfg *config.Config, regionNames []string) (geocoder.Backend, error) {
	switch strings.ToLower(cfg.Geocoder.Mode) {
	case "", "fts":
		paths := make(map[string]string, len(cfg.Regions))
		for _, rc := range cfg.Regions {
			if !rc.IsEnabled() {
				continue
			}
			uri, ok := rc.AddressBook["fts"]
			if !ok {
				continue
			}
			path, err := objStore.Fetch(ctx, uri)
			if err != nil {
				return nil, fmt.Errorf("region %q: fetch fts database: %w", rc.Name, err)
			}
			paths[rc.Name] = path
		}
		return fts.New(paths)

	case "prefix_tree":
		backend := prefixtree.New()
		for _, rc := range cfg.Regions {
			if !rc.IsEnabled() {
				continue
			}
			uri, ok := rc.AddressBook["csv"]
			if !ok {
				continue
			}
			path, err := objStore.Fetch(ctx, uri)
			if err != nil {
				return nil, fmt.Errorf("region %q: fetch address book csv: %w", rc.Name, err)
			}
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("region %q: open address book csv: %w", rc.Name, err)
			}
			buildings, err := addressbook.ParseCSV(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("region %q: parse address book csv: %w", rc.Name, err)
			}
			for _, b := range buildings {
				if err := backend.Insert(rc.Name, b); err != nil {
					return nil, fmt.Errorf("region %q: insert building: %w", rc.Name, err)
				}
			}
			backend.Seal(rc.Name)
		}
		return backend, nil

	default:
		return nil, fmt.Errorf("unknown geocoder.mode %q", cfg.Geocoder.Mode)
	}
}

// buildRoutingPool builds one HTTP-based routing engine per configured
// region.
func buildRoutingPool(cfg *config.Config, logger *logging.Logger) (*routing.Pool, error) {
	instances := make(map[string]routing.Engine, len(cfg.Regions))
	for _, rc := range cfg.Regions {
		if !rc.IsEnabled() {
			continue
		}
		baseURL, ok := rc.OSRM["base_url"]
		if !ok {
			continue
		}
		instances[rc.Name] = routing.NewHTTPEngine(routing.DefaultHTTPEngineConfig(rc.Name, baseURL), logger)
	}
	return routing.NewPool(instances), nil
}
