package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/receiptify/pkg/config"
	"github.com/matzehuels/receiptify/pkg/objecturl"
	"github.com/matzehuels/receiptify/pkg/server"
)

type serveOpts struct {
	addr      string
	redisAddr string
	objectDir string
	remoteURL string
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP export API",
		Long: `Serve exposes the export engine over HTTP.

POST /api/v1/export loads the requested page in Chrome and answers with the
PNG, or with a page embedding it for iOS Safari clients. Object URLs are kept
in memory, in Redis when --redis-addr is set, or in a directory when
--object-dir is set, so several instances can share them.`,
		Example: `  # Listen on the default address
  receiptify serve

  # Share object URLs through Redis
  receiptify serve --addr :8080 --redis-addr localhost:6379`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = opts.addr
			}
			if cmd.Flags().Changed("redis-addr") {
				cfg.Server.RedisAddr = opts.redisAddr
			}
			if cmd.Flags().Changed("object-dir") {
				cfg.Server.ObjectDir = opts.objectDir
			}
			if cmd.Flags().Changed("remote-url") {
				cfg.Browser.RemoteURL = opts.remoteURL
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return c.runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "Redis address for object URLs (default: in memory)")
	cmd.Flags().StringVar(&opts.objectDir, "object-dir", "", "directory for object URLs shared by processes on one host")
	cmd.Flags().StringVar(&opts.remoteURL, "remote-url", "", "DevTools WebSocket URL of a running Chrome")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, cfg *config.Config) error {
	logger := loggerFromContext(ctx)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	backend, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}

	mgr := newBrowserManager(cfg, logger)
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Warn("close browser", "error", err)
		}
	}()

	srv := server.New(server.Config{
		Addr:        cfg.Server.Addr,
		Selector:    cfg.Capture.Selector,
		Backend:     backend,
		Retry:       retryPolicy(cfg),
		RevokeDelay: cfg.Delivery.RevokeDelay,
		ObjectTTL:   cfg.Delivery.ObjectTTL,
		Logger:      logger,
	}, server.BrowserPages{Manager: mgr}, store)

	printInfo("Serving exports on %s", StyleLink.Render("http://"+cfg.Server.Addr))
	return srv.ListenAndServe(ctx)
}

// openStore picks the object URL store: Redis or a directory when one is
// configured, memory otherwise.
func openStore(ctx context.Context, cfg *config.Config) (objecturl.Store, error) {
	if dir := cfg.Server.ObjectDir; dir != "" {
		store, err := objecturl.NewFileStore(dir)
		if err != nil {
			return nil, fmt.Errorf("open object directory: %w", err)
		}
		return store, nil
	}
	if cfg.Server.RedisAddr == "" {
		return objecturl.NewMemoryStore(), nil
	}
	store, err := objecturl.NewRedisStore(ctx, cfg.Server.RedisAddr, cfg.Server.RedisPassword, cfg.Server.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return store, nil
}
