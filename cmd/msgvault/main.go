package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"msgvault/internal/retention"
	"msgvault/pkg/api"
	"msgvault/pkg/attachments"
	"msgvault/pkg/banner"
	"msgvault/pkg/cache"
	"msgvault/pkg/config"
	"msgvault/pkg/dispatch"
	"msgvault/pkg/ingest"
	"msgvault/pkg/logger"
	"msgvault/pkg/policy"
	"msgvault/pkg/shutdown"
	"msgvault/pkg/store"
)

// staticIdentity stands in for the host identity source in standalone mode.
type staticIdentity struct{ id string }

func (s staticIdentity) CurrentUserID() string { return s.id }

func main() {
	// build metadata - set via ldflags during build/release
	var version = "dev"

	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()
	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, _, err := config.LoadEffective(cfgPath)
	if err != nil {
		logger.Init()
		shutdown.Abort("failed to load config", err, "")
	}
	logger.InitWithLevel(cfg.Logging.Level)

	// flags win over env/config when explicitly set
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}
	dbPath := cfg.Storage.DBPath
	if dbPath == "" || setFlags["db"] {
		dbPath = dbVal
	}

	st, err := store.Open(dbPath)
	if err != nil {
		shutdown.Abort("failed to open record store", err, dbPath)
	}

	// persisted settings win over the file config for the policy knobs
	polCfg, err := api.SeedSettings(st, cfg.Policy)
	if err != nil {
		logger.Warn("settings_seed_failed", "error", err)
		polCfg = cfg.Policy
	}
	cfg.Policy.MessageLimit = polCfg.MessageLimit

	ident := staticIdentity{id: cfg.Policy.SelfID}
	pol := policy.New(polCfg, nil, ident)
	sent := cache.New(cfg.Policy.CacheLimit)
	attDir := cfg.Storage.AttachmentDir
	if attDir == "" {
		attDir = dbPath + "/attachments"
	}
	atts := attachments.New(attDir, st, cfg.Storage.SaveAttachments)

	bus := dispatch.New(cfg.Dispatch.QueueCapacity, int(cfg.Dispatch.MaxPooledBufferBytes.Int64()))
	pipe := ingest.New(ingest.Options{
		Store:        st,
		SendCache:    sent,
		Policy:       pol,
		Identity:     ident,
		Attachments:  atts,
		Bus:          bus,
		MessageLimit: polCfg.MessageLimit,
	})
	pipe.Bind(bus)

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	busDone := make(chan struct{})
	go func() {
		bus.Run(ctx.Done())
		close(busDone)
	}()

	sweeper := retention.New(st, atts, cfg.Retention, polCfg.MessageLimit)
	stopSweep, err := sweeper.Start(ctx)
	if err != nil {
		shutdown.Abort("failed to start retention sweep", err, dbPath)
	}

	banner.Print(cfg, addr, dbPath, version)

	root := http.NewServeMux()
	root.Handle("/metrics", promhttp.Handler())
	root.Handle("/", api.New(st, pipe, pol, atts, bus, nil).Handler())

	srv := &http.Server{Addr: addr, Handler: root}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()
	logger.Info("listening", "addr", addr)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		logger.Error("http_serve_failed", "addr", addr, "error", err)
		cancel()
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	stopSweep()
	<-busDone
	bus.CloseAndDrain()
	if err := st.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Info("shutdown_complete")
}
