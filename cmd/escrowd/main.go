package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/goliatone/go-escrow"
	"github.com/goliatone/go-escrow/activitymap"
	"github.com/goliatone/go-escrow/config"
	"github.com/goliatone/go-escrow/ephemeral"
	"github.com/goliatone/go-escrow/metrics"
	"github.com/goliatone/go-escrow/telegram"
)

type App struct {
	config   *gconfig.Container[*config.BaseConfig]
	bunDB    *bun.DB
	repo     escrow.RepositoryManager
	tokens   escrow.TokenService
	metrics  *metrics.Metrics
	srv      router.Server[*fiber.App]
	logger   *glog.BaseLogger
	stoppers []func()
}

func (a *App) Config() *config.BaseConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func (a *App) onStop(fn func()) {
	a.stoppers = append(a.stoppers, fn)
}

func main() {
	tokenFor := flag.String("token-for", "", "print a bearer token for this user id and exit")
	tokenRole := flag.String("token-role", escrow.RoleUser, "role embedded in the token printed by -token-for")
	flag.Parse()

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("escrowd"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.BaseConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	if err := cfg.Raw().Validate(); err != nil {
		lgr.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}
	app.tokens = escrow.NewTokenServiceFromConfig(app.Config().GetAuth(), app.GetLogger("escrow:tokens"))

	if *tokenFor != "" {
		token, err := app.tokens.Generate(*tokenFor, *tokenRole)
		if err != nil {
			lgr.Error("token generation failed", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	if app.Config().GetDebug() {
		fmt.Println("============")
		fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
		fmt.Println("============")
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	if err := WithEscrowRoutes(ctx, app); err != nil {
		panic(err)
	}

	if err := WithMetricsServer(ctx, app); err != nil {
		panic(err)
	}

	go func() {
		addr := app.Config().GetServer().GetAddress()
		lgr.Info("http server listening", "address", addr)
		if err := app.srv.Serve(addr); err != nil {
			lgr.Error("http server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	lgr.Info("shutting down", "signal", sig.String())

	cancel()
	Shutdown(app)
}

func WithPersistence(ctx context.Context, app *App) error {
	pcfg := app.Config().GetPersistence()

	sqldb, err := sql.Open(sqliteshim.ShimName, pcfg.GetDSN())
	if err != nil {
		return err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if pcfg.GetDebug() {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	pctx, cancel := context.WithTimeout(ctx, pcfg.GetPingTimeout())
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		return err
	}

	group, err := escrow.Migrate(ctx, db)
	if err != nil {
		return err
	}
	if group != nil && !group.IsZero() {
		app.GetLogger("persistence").Info("applied migrations", "group", group.String())
	}

	app.bunDB = db
	app.repo = escrow.NewRepositoryManager(db)
	return nil
}

func WithHTTPServer(_ context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: app.Config().GetDebug(),
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))
	app.srv = srv
	return nil
}

func WithMetricsServer(_ context.Context, app *App) error {
	mcfg := app.Config().GetMetrics()
	if !mcfg.GetEnabled() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())

	server := &http.Server{
		Addr:              mcfg.GetAddress(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lgr := app.GetLogger("metrics")
	go func() {
		lgr.Info("metrics listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lgr.Error("metrics server stopped", "error", err)
		}
	}()

	app.onStop(func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(sctx)
	})
	return nil
}

func WithEscrowRoutes(ctx context.Context, app *App) error {
	cfg := app.Config()
	authCfg := cfg.GetAuth()
	debug := cfg.GetDebug()

	app.metrics = metrics.New()

	errorHandler := escrow.NewErrorHandler(app.GetLogger("escrow:http"), debug)
	protected := escrow.ProtectedRoute(authCfg, app.tokens, errorHandler)
	admin := escrow.AdminRoute(authCfg, app.tokens, errorHandler)

	tokens := ephemeral.NewMemoryStore(
		ephemeral.WithDefaultTTL(cfg.GetTokens().GetTTL()),
		ephemeral.WithSweepInterval(cfg.GetTokens().GetSweepInterval()),
	)
	tokens.Start(ctx)
	app.onStop(tokens.Stop)

	sessions := telegram.NewMemorySessionCache(
		telegram.WithSessionTTL(cfg.GetTelegram().GetSessionTTL()),
		telegram.WithSessionSweepInterval(cfg.GetTelegram().GetSweepInterval()),
	)
	sessions.Start(ctx)
	app.onStop(sessions.Stop)

	limiter := escrow.NewRateJoinLimiter(cfg.GetEscrow().GetJoinLimit())
	limiter.Start(ctx)
	app.onStop(limiter.Stop)

	app.metrics.Gauge("ephemeral", "tokens", "Pending Telegram link tokens, expired ones included.", tokens.Len)
	app.metrics.Gauge("telegram", "sessions", "Stored Telegram chat links, expired ones included.", sessions.Len)
	app.metrics.Gauge("join", "tracked_actors", "Actors with a live join rate limiter.", limiter.Len)

	activity := escrow.MultiActivitySink(
		app.metrics,
		activitymap.Sink(app.GetLogger("escrow:activity")),
	)

	smOpts := []escrow.StateMachineOption{
		escrow.WithStateMachineLogger(app.GetLogger("escrow:sm")),
		escrow.WithStateMachineActivitySink(activity),
		escrow.WithNotificationTimeout(cfg.GetEscrow().GetNotificationTimeout()),
		escrow.WithJoinLimiter(app.metrics.JoinLimiter(limiter)),
	}

	var sender telegram.Sender
	tcfg := cfg.GetTelegram()
	if tcfg.GetEnabled() {
		client := telegram.NewClient(tcfg.GetBotToken(), telegram.WithBaseURL(tcfg.GetAPIBaseURL()))
		sender = client
		smOpts = append(smOpts, escrow.WithStateMachineNotifier(
			telegram.NewNotifier(client, sessions, app.GetLogger("telegram:notify")),
		))
	}

	machine := escrow.NewEscrowStateMachine(app.repo, smOpts...)

	creator := escrow.NewCreateEscrowHandler(app.repo).
		WithActivitySink(activity).
		WithLogger(app.GetLogger("escrow:create"))

	api := app.srv.Router().Group("/api/v1")

	escrow.NewEscrowController(machine, escrow.NewEscrowReader(app.repo), creator,
		escrow.WithControllerLogger(app.GetLogger("escrow:ctrl")),
		escrow.WithControllerContextKey(authCfg.GetContextKey()),
		escrow.WithControllerDebug(debug),
		escrow.WithControllerErrorHandler(errorHandler),
	).RegisterRoutes(api, protected)

	telegram.NewController(
		telegram.NewLinker(tokens, sessions, tcfg.GetBotName()),
		sessions,
		telegram.WithLogger(app.GetLogger("telegram:http")),
		telegram.WithContextKey(authCfg.GetContextKey()),
		telegram.WithWebhookSecret(tcfg.GetWebhookSecret()),
		telegram.WithSender(sender),
		telegram.WithErrorHandler(errorHandler),
	).RegisterRoutes(api, protected, admin)

	return nil
}

func Shutdown(app *App) {
	lgr := app.GetLogger("shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), app.Config().GetServer().GetShutdownTimeout())
	defer cancel()

	if err := app.srv.Shutdown(ctx); err != nil {
		lgr.Error("http shutdown failed", "error", err)
	}

	for i := len(app.stoppers) - 1; i >= 0; i-- {
		app.stoppers[i]()
	}

	if app.bunDB != nil {
		if err := app.bunDB.Close(); err != nil {
			lgr.Error("database close failed", "error", err)
		}
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
