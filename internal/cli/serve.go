package cli

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/vburojevic/readtime/internal/detect"
	"github.com/vburojevic/readtime/internal/domain"
	"github.com/vburojevic/readtime/internal/lifecycle"
	"github.com/vburojevic/readtime/internal/session"
	"github.com/vburojevic/readtime/internal/store"
	"github.com/vburojevic/readtime/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ServeCmd runs the tracker. Flags override the config file.
type ServeCmd struct {
	Host      string `help:"Listen host (default from config)"`
	Port      int    `help:"Listen port (default from config)"`
	Store     string `enum:"file,sqlite,memory," default:"" help:"Store backend: file, sqlite or memory"`
	StorePath string `type:"path" help:"Store location (default under the state dir)"`
}

// Run executes the serve command
func (c *ServeCmd) Run(globals *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.serve(ctx, globals)
}

func (c *ServeCmd) serve(ctx context.Context, globals *Globals) error {
	cfg := *globals.Config
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.Store != "" {
		cfg.Store.Backend = c.Store
	}
	if c.StorePath != "" {
		cfg.Store.Path = c.StorePath
	}
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	logger := globals.logger()

	classifier, err := detect.NewClassifier(cfg.Site)
	if err != nil {
		return outputErrorCommon(globals, codeInvalidConfig, err.Error(), "check site.hosts patterns")
	}

	kv, err := store.Open(ctx, cfg.Store)
	if err != nil {
		logger.Warn("store unavailable, keeping state in memory",
			zap.String("backend", cfg.Store.Backend), zap.Error(err))
		kv = store.NewMemoryKV()
	}
	repo := store.NewRepository(kv)
	defer repo.Close()

	tracker := session.NewTracker(repo, session.Options{
		Logger:         logger,
		CoalesceWindow: cfg.Tracker.CoalesceWindow,
		DefaultSettings: domain.Settings{
			ThresholdSeconds: cfg.Settings.ThresholdSeconds,
			Enabled:          cfg.Settings.Enabled,
		},
	})
	manager := lifecycle.NewManager(classifier, tracker, logger)
	srv := transport.NewServer(tracker, manager, nil, cfg.Server.AllowedOrigins, logger)
	tracker.SetNotifier(srv.Hub())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tracker.Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx, addr) })

	globals.Info("listening", map[string]any{
		"addr":    addr,
		"ws":      transport.WSURL(addr),
		"backend": cfg.Store.Backend,
	})

	if err := g.Wait(); err != nil {
		return outputErrorCommon(globals, codeServeFailed, err.Error(), "is another readtime serve already listening?")
	}
	return nil
}
