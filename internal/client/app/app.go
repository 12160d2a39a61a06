package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/shiftdesk/internal/client/config"
	"github.com/dmitrijs2005/shiftdesk/internal/client/events"
	"github.com/dmitrijs2005/shiftdesk/internal/client/i18n"
	"github.com/dmitrijs2005/shiftdesk/internal/client/notifications"
	"github.com/dmitrijs2005/shiftdesk/internal/client/realtime"
	"github.com/dmitrijs2005/shiftdesk/internal/client/session"
	"github.com/dmitrijs2005/shiftdesk/internal/client/toast"
	"github.com/dmitrijs2005/shiftdesk/internal/client/transport"
	"github.com/dmitrijs2005/shiftdesk/internal/cryptox"
	"github.com/dmitrijs2005/shiftdesk/internal/logging"
	"github.com/dmitrijs2005/shiftdesk/internal/metrics"
	"github.com/tidwall/gjson"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	notifier   *consoleNotifier
	session    *session.Session
	api        *transport.Client
	bus        *events.Bus
	reconciler *notifications.Reconciler
	manager    *realtime.Manager
}

// consoleNotifier logs notices and keeps the last prompt so the console
// can accept it later.
type consoleNotifier struct {
	toast.LogNotifier

	mu     sync.Mutex
	action toast.Action
}

func (n *consoleNotifier) Prompt(ctx context.Context, notice toast.Notice, label string, action toast.Action) {
	n.mu.Lock()
	n.action = action
	n.mu.Unlock()
	n.LogNotifier.Prompt(ctx, notice, label, action)
}

func (n *consoleNotifier) take() toast.Action {
	n.mu.Lock()
	defer n.mu.Unlock()
	a := n.action
	n.action = nil
	return a
}

func NewApp(c *config.Config) (*App, error) {
	return newApp(c, os.Stderr)
}

func newApp(c *config.Config, logOut io.Writer) (*App, error) {
	logger, err := logging.New(c.LogBackend, c.LogFormat, c.LogLevel, logOut)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	catalog, err := i18n.New()
	if err != nil {
		return nil, fmt.Errorf("catalog init error: %w", err)
	}

	notifier := &consoleNotifier{LogNotifier: toast.LogNotifier{Logger: logger}}

	navigator := session.NavigatorFunc(func(ctx context.Context, path string) {
		printlnFn("Session ended, sign in again at", path)
	})
	sess, err := session.New(c.BaseURL, navigator, c.LoginPath, logger)
	if err != nil {
		return nil, fmt.Errorf("session init error: %w", err)
	}
	if c.SessionCookie != "" {
		if err := sess.LoadCookieHeader(c.SessionCookie); err != nil {
			return nil, fmt.Errorf("session cookie: %w", err)
		}
	}

	key, err := cryptox.ParseKey(c.PayloadKey, c.PayloadKeySalt)
	if err != nil {
		return nil, fmt.Errorf("payload key: %w", err)
	}

	api, err := transport.New(transport.Options{
		BaseURL:           c.BaseURL,
		Language:          c.Language,
		Timeout:           c.RequestTimeout,
		RequestsPerSecond: c.RequestsPerSecond,
		Jar:               sess,
		Pipeline:          transport.NewPipeline(key, c.StrictDecryption, logger),
		Classifier:        transport.NewClassifier(notifier, catalog, c.Language, nil, logger),
		Session:           sess,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("transport init error: %w", err)
	}

	bus := events.NewBus()
	reconciler := notifications.NewReconciler(api, sess, bus, notifier, catalog, c.Language, logger)
	manager := realtime.NewManager(realtime.Options{
		URL:                 c.SocketURL,
		Jar:                 sess,
		ConnectTimeout:      c.ConnectTimeout,
		ReconnectBaseDelay:  c.ReconnectBaseDelay,
		MaxAttempts:         c.ReconnectMaxAttempts,
		HealthCheckInterval: c.HealthCheckInterval,
		HealthCheckTimeout:  c.HealthCheckTimeout,
		ReconcileDelay:      c.ReconcileDelay,
		ContractEventDelay:  c.ContractEventDelay,
		Reconciler:          reconciler,
		Notifier:            notifier,
		Catalog:             catalog,
		Language:            c.Language,
		Bus:                 bus,
		Logger:              logger,
	})

	a := &App{
		config:     c,
		logger:     logger,
		notifier:   notifier,
		session:    sess,
		api:        api,
		bus:        bus,
		reconciler: reconciler,
		manager:    manager,
	}
	a.subscribe()
	return a, nil
}

// subscribe logs the local events, pins the identity the server confirms
// and turns show-notifications into a delivery request. The app owns the
// bus, so shutdown clears every subscription at once.
func (a *App) subscribe() {
	logEvent := func(ctx context.Context, e events.Event) {
		a.logger.Info(ctx, "event", "name", e.Name, "payload", string(e.Payload))
	}
	for _, name := range []events.Name{
		events.NotificationReceived,
		events.ContractSignerSigned,
		events.ContractCompleted,
	} {
		a.bus.Subscribe(name, logEvent)
	}

	a.bus.Subscribe(events.SocketAuthenticated, func(ctx context.Context, e events.Event) {
		logEvent(ctx, e)
		if id := gjson.GetBytes(e.Payload, "userId").String(); id != "" {
			a.session.SetUserID(id)
		}
	})
	a.bus.Subscribe(events.ConnectionState, func(ctx context.Context, e events.Event) {
		var tr realtime.Transition
		if err := e.Decode(&tr); err == nil {
			printlnFn(fmt.Sprintf("[realtime] %s -> %s", tr.From, tr.To))
		}
	})
	a.bus.Subscribe(events.ShowNotifications, func(ctx context.Context, _ events.Event) {
		if _, err := a.reconciler.ForceDeliver(ctx); err != nil {
			a.logger.Warn(ctx, "deliver notifications", "error", err)
		}
	})
}

func (a *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (a *App) startMetricsServer(ctx context.Context) *http.Server {
	if a.config.MetricsAddr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: a.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.Info(ctx, "metrics server listening", "addr", a.config.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(ctx, "metrics server failed", "error", err)
		}
	}()
	return srv
}

// Run connects the realtime channel and blocks until a signal arrives or
// the console exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	a.logger.Info(ctx, "Starting shiftdesk client...", "api", a.config.BaseURL, "socket", a.config.SocketURL)
	a.initSignalHandler(cancelFunc)
	metricsSrv := a.startMetricsServer(ctx)

	interactive := stdinIsTerminal()
	if interactive && a.config.SessionCookie == "" {
		if err := a.Cookie(ctx); err != nil {
			a.logger.Warn(ctx, "no session cookie", "error", err)
		}
	}

	if err := a.manager.Connect(ctx); err != nil {
		a.logger.Error(ctx, "realtime connect failed", "error", err)
	}

	var wg sync.WaitGroup
	if interactive {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancelFunc()
			runConsole(ctx, a, bufio.NewScanner(os.Stdin))
		}()
	}

	<-ctx.Done()
	a.shutdown(metricsSrv)
	wg.Wait()
}

func (a *App) shutdown(metricsSrv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.manager.Disconnect(); err != nil {
		a.logger.Warn(ctx, "realtime disconnect", "error", err)
	}
	a.bus.Clear()
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			a.logger.Warn(ctx, "metrics server shutdown", "error", err)
		}
	}
	a.logger.Info(ctx, "shiftdesk client stopped")
	if s, ok := a.logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}
