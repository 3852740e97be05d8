package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/felt/pkg/api"
	"github.com/cuemby/felt/pkg/config"
	"github.com/cuemby/felt/pkg/events"
	"github.com/cuemby/felt/pkg/handler"
	"github.com/cuemby/felt/pkg/log"
	"github.com/cuemby/felt/pkg/metrics"
	"github.com/cuemby/felt/pkg/reconciler"
	"github.com/cuemby/felt/pkg/session"
	"github.com/cuemby/felt/pkg/storage"
	"github.com/cuemby/felt/pkg/table"
	"github.com/cuemby/felt/pkg/transport"
	"github.com/cuemby/felt/pkg/types"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tabletop server",
	Long: `Run the websocket server, the public session listing, health checks and
Prometheus metrics on --addr, and the gRPC health service on --grpc-addr.

With --data-dir set, sessions are checkpointed to disk and restored on the
next start; players resume their seats with their reconnect tokens.`,
	RunE: runServe,
}

func init() {
	d := config.Default()
	f := serveCmd.Flags()
	f.String("addr", d.Server.Addr, "HTTP listen address")
	f.String("grpc-addr", d.Server.GRPCAddr, "gRPC health listen address (empty disables)")
	f.StringSlice("allowed-origins", nil, "Allowed websocket origins (empty allows any)")
	f.String("data-dir", d.Storage.DataDir, "Checkpoint directory (empty disables persistence)")
	f.String("template", d.Table.Template, "Table template YAML (empty uses a standard deck)")
	f.Int("max-participants", d.Session.MaxParticipants, "Seats per session")

	_ = v.BindPFlag("server.addr", f.Lookup("addr"))
	_ = v.BindPFlag("server.grpc_addr", f.Lookup("grpc-addr"))
	_ = v.BindPFlag("server.allowed_origins", f.Lookup("allowed-origins"))
	_ = v.BindPFlag("storage.data_dir", f.Lookup("data-dir"))
	_ = v.BindPFlag("table.template", f.Lookup("template"))
	_ = v.BindPFlag("session.max_participants", f.Lookup("max-participants"))
}

func loadInitial(path string) (types.TableState, error) {
	tpl := table.StandardTemplate()
	if path != "" {
		var err error
		if tpl, err = table.LoadTemplate(path); err != nil {
			return types.TableState{}, err
		}
	}
	return tpl.Build()
}

// logEvents writes lifecycle events to the log until the subscription ends
func logEvents(sub events.Subscriber) {
	logger := log.WithComponent("events")
	for ev := range sub {
		e := logger.Info().Str("event", string(ev.Type)).Str("session", ev.Session)
		for k, val := range ev.Metadata {
			e = e.Str(k, val)
		}
		e.Msg(ev.Message)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log.Init(log.Config{Level: log.ParseLevel(cfg.Log.Level), JSONOutput: cfg.Log.JSON})
	logger := log.WithComponent("serve")
	metrics.SetVersion(Version)
	metrics.SetCriticalComponents(metrics.ComponentRegistry, metrics.ComponentAPI)
	metrics.RegisterComponent(metrics.ComponentRegistry, false, "restoring sessions")

	initial, err := loadInitial(cfg.Table.Template)
	if err != nil {
		return fmt.Errorf("failed to load table template: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()
	go logEvents(sub)
	defer broker.Unsubscribe(sub)

	var store session.Store
	if cfg.Storage.DataDir != "" {
		bolt, err := storage.NewBoltStore(cfg.Storage.DataDir)
		if err != nil {
			return err
		}
		defer bolt.Close()
		store = bolt
		metrics.RegisterComponent(metrics.ComponentStorage, true, "")
	}

	hub := transport.NewHub(transport.Config{
		RateLimit:      cfg.RateLimit.PerSecond,
		RateBurst:      cfg.RateLimit.Burst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	registry, err := session.NewRegistry(session.Config{
		MaxParticipants: cfg.Session.MaxParticipants,
		IdleRetention:   cfg.Session.IdleRetention,
		LeaseTTL:        cfg.Session.LeaseTTL,
		LeaseSweep:      cfg.Session.LeaseSweep,
		CodeLength:      cfg.Session.CodeLength,
		QueueSize:       cfg.Session.QueueSize,
		Initial:         initial,
	}, hub, broker, store)
	if err != nil {
		return err
	}
	hub.Attach(handler.NewDispatcher(registry, hub), registry)

	restoreCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	restored, err := registry.Restore(restoreCtx)
	cancel()
	if err != nil {
		logger.Error().Err(err).Int("restored", restored).Msg("Failed to restore every session")
	} else if restored > 0 {
		logger.Info().Int("restored", restored).Msg("Sessions restored")
	}
	metrics.UpdateComponent(metrics.ComponentRegistry, true, "")
	metrics.SetStatsSource(registry)

	collector := metrics.NewCollector(registry, 15*time.Second)
	collector.Start()
	defer collector.Stop()

	recon := reconciler.NewReconciler(registry, reconciler.Config{
		Interval:           cfg.Reconciler.Interval,
		CheckpointInterval: cfg.Storage.CheckpointInterval,
	})
	recon.Start()

	server := api.NewServer(api.Config{Addr: cfg.Server.Addr, GRPCAddr: cfg.Server.GRPCAddr}, hub, registry)
	if err := server.Start(); err != nil {
		recon.Stop()
		registry.Shutdown()
		return err
	}
	server.Health().Watch(5 * time.Second)

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Int("items", len(initial.Items)).
		Bool("persistent", store != nil).
		Msg("Felt is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	metrics.UpdateComponent(metrics.ComponentRegistry, false, "draining")
	hub.Close()
	recon.Stop()
	registry.Shutdown()

	logger.Info().Msg("Shutdown complete")
	return nil
}
