package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"attbot/internal/attendance"
	"attbot/internal/config"
	"attbot/internal/metrics"
	"attbot/internal/notify"
	"attbot/internal/report"
	"attbot/internal/resolve"
	"attbot/internal/site"
	"attbot/internal/source"
	"attbot/internal/status"
	"attbot/internal/store"
)

const defaultSiteURL = "https://tjupt.org"

var (
	flagConfig string
	flagUsers  []string
	flagRetry  int
	flagForce  bool
	flagDebug  bool
)

func main() {
	root := &cobra.Command{
		Use:           "attbot",
		Short:         "Automated attendance check-in bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to attbot.toml (default: next to the binary)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "verbose logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduled check-in loop",
		RunE:  func(cmd *cobra.Command, _ []string) error { return run(cmd.Context(), false) },
	}
	onceCmd := &cobra.Command{
		Use:   "once",
		Short: "Check in immediately and exit",
		RunE:  func(cmd *cobra.Command, _ []string) error { return run(cmd.Context(), true) },
	}
	for _, c := range []*cobra.Command{runCmd, onceCmd} {
		c.Flags().StringArrayVarP(&flagUsers, "user", "u", nil, "temporary user as name=password (repeatable, skips the config file users)")
		c.Flags().IntVar(&flagRetry, "retry", 0, "override the retry budget")
	}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Write a starter config file",
		RunE: func(*cobra.Command, []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if err := config.Install(path, flagForce); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	installCmd.Flags().BoolVarP(&flagForce, "force", "f", false, "overwrite an existing config")

	uninstallCmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the config file and saved cookies",
		RunE: func(*cobra.Command, []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			return config.Uninstall(path)
		},
	}

	root.AddCommand(runCmd, onceCmd, installCmd, uninstallCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "attbot:", err)
		os.Exit(1)
	}
}

func configPath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	return config.Path()
}

func newLogger() (*zap.Logger, error) {
	if flagDebug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadConfig() (config.File, error) {
	if len(flagUsers) > 0 {
		cfg := config.Default()
		for _, pair := range flagUsers {
			name, pwd, ok := strings.Cut(pair, "=")
			if !ok || name == "" || pwd == "" {
				return config.File{}, fmt.Errorf("invalid --user %q: want name=password", pair)
			}
			cfg.Users = append(cfg.Users, config.User{Name: name, Password: pwd})
		}
		return cfg, nil
	}
	path, err := configPath()
	if err != nil {
		return config.File{}, err
	}
	return config.Load(path)
}

func run(ctx context.Context, once bool) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagRetry > 0 {
		cfg.Retry = flagRetry
	}
	infra := config.LoadInfra()

	client := source.NewHTTPClient(15 * time.Second)

	var redisStore *store.Redis
	if infra.RedisUse {
		redisStore = store.NewRedis(infra.RedisAddr)
		defer redisStore.Close()
	}

	var db *store.DB
	if infra.DatabaseURL != "" {
		db, err = store.NewDB(ctx, infra.DatabaseURL)
		if err != nil {
			log.Warn("attempt history disabled, database unreachable", zap.Error(err))
		} else {
			defer db.Close()
		}
	}
	var repo *attendance.Repository
	if db != nil {
		repo = attendance.NewRepository(db.Client)
	}

	var cache *source.Cache
	sources := make([]source.Source, 0, 2)
	if cfg.CacheAPI.URL != "" {
		cache = source.NewCache(cfg.CacheAPI.URL, cfg.CacheAPI.Token, cfg.CacheAPI.Report, client)
		sources = append(sources, cache)
	}
	sources = append(sources, source.NewMetadata(cfg.MetadataURL, client))

	resolver := source.NewResolver(client, redisStore.ClientOrNil(), log)
	engine := resolve.New(sources, resolver, cfg.Offset(), log)

	var queue report.Queue
	if redisStore != nil {
		queue = report.NewRedisQueue(redisStore.Client, "attbot:report")
	} else {
		queue = report.NewInMemory(64)
	}
	reporting := cache != nil && cfg.CacheAPI.Report
	var pusher report.Pusher
	if cache != nil {
		pusher = cache
	}
	reporter := report.NewReporter(queue, pusher, resolver, reporting, log)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Email.Enable {
		notifier = notify.NewMailer(cfg.Email.Host, cfg.Email.Port, cfg.Email.Account, cfg.Email.Password, cfg.Email.From, log)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	siteURL := cfg.SiteURL
	if siteURL == "" {
		siteURL = defaultSiteURL
	}

	users := cfg.EnabledUsers()
	if once {
		users = cfg.Users // one-shot mode ignores the enable switch
	}
	if len(users) == 0 {
		return errors.New("no enabled users")
	}

	orchestrators := make(map[string]*attendance.Orchestrator, len(users))
	for _, u := range users {
		cookiePath := filepath.Join(infra.CookieDir, u.Name+"_cookie.json")
		session, err := site.NewSession(
			site.Credential{Name: u.Name, Password: u.Password},
			site.DefaultEndpoints(siteURL),
			cookiePath, log,
		)
		if err != nil {
			return fmt.Errorf("session for %s: %w", u.Name, err)
		}
		defer session.Close()

		o := attendance.New(session, engine, reporter, log)
		o.Repo = repo
		o.Notifier = notifier
		o.Metrics = m
		o.Email = u.Email
		o.Points = cfg.PointsFor(u)
		o.Retry = cfg.RetryFor(u)
		o.Delay = cfg.DelayFor(u)
		orchestrators[u.Name] = o
	}

	if once {
		reportCtx, stopReporter := context.WithCancel(context.Background())
		reporterDone := make(chan struct{})
		go func() {
			defer close(reporterDone)
			_ = reporter.Run(reportCtx)
		}()

		var errs []error
		for name, o := range orchestrators {
			if err := o.RunOnce(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}

		// Give pending cache reports a moment to drain.
		time.Sleep(500 * time.Millisecond)
		stopReporter()
		<-reporterDone
		return errors.Join(errs...)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, o := range orchestrators {
		o := o
		g.Go(func() error { return o.Run(gctx) })
	}
	g.Go(func() error { return reporter.Run(gctx) })

	if infra.StatusOn {
		srv := status.New(infra.StatusAddr, log)
		srv.Repo = repo
		srv.Redis = redisStore
		srv.Registry = registry
		srv.Orchestrators = orchestrators
		g.Go(func() error { return srv.Run(gctx) })
	}

	log.Info("attbot running", zap.Int("users", len(orchestrators)))
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		log.Info("shutting down")
		return nil
	}
	return err
}
