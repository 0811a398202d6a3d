// Command kventity-demo exercises the kventity data layer end to end
// against a configured engine backend: bundled attach, indexed queries,
// relations, iteration, and cascade delete.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/kventity"
	"github.com/MrWong99/kventity/codec"
	"github.com/MrWong99/kventity/internal/config"
	"github.com/MrWong99/kventity/internal/observe"
	"github.com/MrWong99/kventity/kv"
	"github.com/MrWong99/kventity/kv/memkv"
	"github.com/MrWong99/kventity/kv/pgkv"
	"github.com/MrWong99/kventity/kv/tikv"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "kventity-demo: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "kventity-demo: %v\n", err)
		}
		return 1
	}

	slog.SetDefault(newLogger(cfg.Observability.LogLevel))
	slog.Info("kventity-demo starting",
		"config", *configPath,
		"backend", cfg.Engine.Backend,
		"metrics_addr", cfg.Observability.MetricsAddr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "kventity-demo"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	engine, err := openEngine(ctx, cfg)
	if err != nil {
		slog.Error("failed to open engine", "err", err)
		return 1
	}

	db := kventity.New(engine, dbOptions(cfg, metrics)...)
	defer db.Close()

	for _, meta := range kventity.RegisteredComponents() {
		slog.Debug("registered component", "type_path", meta.TypePath, "indexed_fields", meta.IndexedFieldNames)
	}

	g, ctx := errgroup.WithContext(ctx)

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: promhttp.Handler()}
		g.Go(func() error {
			slog.Info("metrics endpoint listening", "addr", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer stop()
		return workload(ctx, db)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("done")
	return 0
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func openEngine(ctx context.Context, cfg *config.Config) (kv.Engine, error) {
	switch cfg.Engine.Backend {
	case "tikv":
		return tikv.New(cfg.Engine.PDEndpoints)
	case "postgres":
		return pgkv.New(ctx, cfg.Engine.PostgresDSN)
	default:
		return memkv.New(), nil
	}
}

func dbOptions(cfg *config.Config, metrics *observe.Metrics) []kventity.Option {
	opts := []kventity.Option{kventity.WithMetrics(metrics)}
	if cfg.Codec == "proto" {
		opts = append(opts, kventity.WithCodec(codec.Proto))
	}
	return opts
}

// workload walks through the data layer's surface: bundled attach, equality
// and range queries, relation triads, streamed iteration, cascade delete.
func workload(ctx context.Context, db *kventity.DB) error {
	if err := db.DropAll(ctx); err != nil {
		return err
	}

	// Bundled attach: both components land in one transaction.
	alice := db.Entity("1")
	err := alice.Attach(ctx,
		&UserInfo{Name: "Alice", Age: 25, Email: "alice@example.com"},
		&UserExtend{Extend: "extend"},
	)
	if err != nil {
		return err
	}

	// Query by indexed string field.
	got, err := NewUserInfoQuery(db).Name("Alice").Single(ctx)
	if err != nil {
		return err
	}
	slog.Info("query by name", "name", got.Name, "age", got.Age, "email", got.Email)

	// Query by indexed numeric field, then fetch the second component.
	handle, err := NewUserInfoQuery(db).Age(25).Entity(ctx)
	if err != nil {
		return err
	}
	ext, err := kventity.Get[UserExtend](ctx, handle)
	if err != nil {
		return err
	}
	slog.Info("query by age", "entity", handle.EntityID().String(), "extend", ext.Extend)

	// Relations: link 1 → 2, then enumerate from 2's perspective.
	bob := db.Entity("2")
	if err := bob.Attach(ctx, &UserInfo{Name: "Bob", Age: 31}); err != nil {
		return err
	}
	if err := alice.Link(ctx, bob.EntityID(), &FriendRelation{Fav: 100}); err != nil {
		return err
	}
	edges := kventity.Edges[FriendRelation](bob, kventity.In)
	defer edges.Close(ctx)
	for edges.Next(ctx) {
		other, dir, rel := edges.Item()
		slog.Info("edge", "other", other.String(), "direction", dir.String(), "fav", rel.Fav)
	}
	if err := edges.Err(); err != nil {
		return err
	}

	// A small population, then a range scan in age order.
	for i := range 10 {
		e := db.Entity(fmt.Sprintf("crowd-%d", i))
		if err := e.Attach(ctx, &UserInfo{Name: fmt.Sprintf("user-%d", i), Age: int32(40 + i)}); err != nil {
			return err
		}
	}
	crowd, err := NewUserInfoQuery(db).AgeRange(40, 50).All(ctx)
	if err != nil {
		return err
	}
	slog.Info("range query", "matches", len(crowd))

	// Full-type iteration.
	it := kventity.Iterate[UserInfo](db)
	defer it.Close(ctx)
	n := 0
	for it.Next(ctx) {
		n++
	}
	if err := it.Err(); err != nil {
		return err
	}
	slog.Info("iterated", "rows", n)

	// Cascade delete removes Alice's components, indexes, and edges.
	if err := alice.Delete(ctx); err != nil {
		return err
	}
	count, err := NewUserInfoQuery(db).Name("Alice").Count(ctx)
	if err != nil {
		return err
	}
	slog.Info("after delete", "alice_matches", count)
	return nil
}
