package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/xdr-console/internal/connectors"
	"github.com/xela07ax/xdr-console/internal/console/handler"
	"github.com/xela07ax/xdr-console/internal/console/notify"
	"github.com/xela07ax/xdr-console/internal/console/server"
	"github.com/xela07ax/xdr-console/internal/console/session"
	"github.com/xela07ax/xdr-console/internal/console/store"
	"github.com/xela07ax/xdr-console/internal/domain"
	"github.com/xela07ax/xdr-console/internal/engine"
	"github.com/xela07ax/xdr-console/internal/infra"
	"github.com/xela07ax/xdr-console/internal/repository/postgres"
	"github.com/xela07ax/xdr-console/internal/repository/redisstore"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("xdrsync stopped with error", zap.Error(err))
	}
}

// stores — всё, что main перечитывает при входе в сессию.
type stores struct {
	events    *store.EventStore
	incidents *store.IncidentStore
	assets    *store.AssetStore
	alerts    *store.AlertStore
	dashboard *store.DashboardStore
	favorites *store.Favorites
}

func run(cfg *infra.Config, logger *zap.Logger) error {
	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infra.NewMetrics(reg)

	// 1. Хранилище сессии
	storage, closeStorage, err := openStorage(appCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage()

	// 2. Session -> Gateway -> Stores -> Bridge
	sess := session.New(storage, logger)
	if err := sess.InitializeAuth(appCtx); err != nil {
		logger.Warn("failed to restore session", zap.Error(err))
	}

	rel := connectors.NewReliability(cfg.Gateway, metrics, logger)
	gw := connectors.NewGateway(cfg.API, sess, rel, metrics, logger)
	sess.BindAPI(gw)

	toasts := notify.NewQueue(metrics, logger)
	gw.OnUnauthenticated(func() {
		toasts.Warning("세션이 만료되었습니다. 다시 로그인해주세요.")
	})

	st := stores{
		events:    store.NewEventStore(gw, logger),
		incidents: store.NewIncidentStore(gw, logger),
		assets:    store.NewAssetStore(gw, logger),
		alerts:    store.NewAlertStore(gw, logger),
		dashboard: store.NewDashboardStore(gw, cfg.Dashboard.StaleAfter, logger),
		favorites: store.NewFavorites(storage, logger),
	}
	if err := st.favorites.Load(appCtx); err != nil {
		logger.Warn("failed to load favorites", zap.Error(err))
	}

	bridge, err := engine.NewBridge(cfg.WS, sess, metrics, logger)
	if err != nil {
		return fmt.Errorf("failed to init live update bridge: %w", err)
	}
	defer bridge.Disconnect()

	push := engine.NewSync(bridge, st.events, st.incidents, toasts, logger)
	push.Attach()
	defer push.Detach()

	// 3. Вход: учетка из конфига или проверка сохраненного токена
	authenticate(appCtx, cfg, sess, logger)

	// 4. Фоновые циклы
	go supervise(appCtx, sess, bridge, st, toasts, logger)
	go refreshToken(appCtx, sess, logger)
	go refreshDashboard(appCtx, cfg.Dashboard.RefreshInterval, sess, st.dashboard, logger)

	// 5. HTTP API состояния
	var metricsHandler http.Handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		metricsHandler = nil

		go func() {
			logger.Info("metrics server started", zap.String("addr", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	api := server.NewConsoleServer(logger, sess, server.Handlers{
		Auth:      handler.NewAuthHandler(sess),
		Events:    handler.NewEventsHandler(st.events),
		Incidents: handler.NewIncidentsHandler(st.incidents),
		Assets:    handler.NewAssetsHandler(st.assets),
		Alerts:    handler.NewAlertsHandler(st.alerts),
		Dashboard: handler.NewDashboardHandler(st.dashboard),
		Toasts:    handler.NewToastHandler(toasts),
		Favorites: handler.NewFavoritesHandler(st.favorites),
	}, metricsHandler)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("state api started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 6. Graceful Shutdown
	select {
	case <-appCtx.Done():
		logger.Info("xdrsync stopping...")
	case err := <-errCh:
		return fmt.Errorf("state api: %w", err)
	}

	// Даем 5 секунд на завершение запросов
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("state api shutdown failed", zap.Error(err))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	logger.Info("xdrsync exited properly")
	return nil
}

func openStorage(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (session.Storage, func(), error) {
	noop := func() {}

	switch cfg.Storage.Driver {
	case "memory":
		return session.NewMemoryStorage(), noop, nil

	case "file", "":
		return session.NewFileStorage(cfg.Storage.Path), noop, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st := redisstore.NewStorage(rdb)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := st.Ping(pingCtx); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("redis unreachable: %w", err)
		}
		logger.Info("session storage: redis", zap.String("addr", cfg.Redis.Addr))
		return st, func() { rdb.Close() }, nil

	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewSessionRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("session storage: postgres")
		return repo, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func authenticate(ctx context.Context, cfg *infra.Config, sess *session.Session, logger *zap.Logger) {
	if cfg.API.Username != "" {
		if _, err := sess.Login(ctx, cfg.API.Username, cfg.API.Password); err != nil {
			logger.Error("auto login failed", zap.String("user", cfg.API.Username), zap.String("reason", sess.Error()))
		}
		return
	}
	if sess.CheckAuth(ctx) {
		logger.Info("session restored", zap.String("role", string(sess.Role())))
		return
	}
	logger.Info("no active session, waiting for login via state api")
}

// supervise держит мост и кэши в согласии с сессией: вход -> загрузка и подключение,
// выход -> отключение моста.
func supervise(ctx context.Context, sess *session.Session, bridge *engine.Bridge, st stores, toasts *notify.Queue, logger *zap.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	active := false
	for {
		if authed := sess.IsAuthenticated(); authed != active {
			active = authed
			if authed {
				loadAll(ctx, st, toasts, logger)
				bridge.Connect(ctx)
			} else {
				bridge.Disconnect()
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func loadAll(ctx context.Context, st stores, toasts *notify.Queue, logger *zap.Logger) {
	var failed []error
	collect := func(err error) {
		if err != nil {
			failed = append(failed, err)
		}
	}

	_, err := st.events.FetchEvents(ctx, domain.EventFilter{})
	collect(err)
	_, err = st.incidents.FetchIncidents(ctx, domain.IncidentFilter{})
	collect(err)
	_, err = st.assets.FetchAssets(ctx, domain.AssetFilter{})
	collect(err)
	_, err = st.alerts.FetchAlertRules(ctx)
	collect(err)
	_, err = st.dashboard.FetchStats(ctx)
	collect(err)

	if len(failed) > 0 {
		err := errors.Join(failed...)
		logger.Warn("initial sync incomplete", zap.Int("failed", len(failed)), zap.Error(err))
		toasts.Error(connectors.ErrorMessage(failed[0]))
		return
	}
	logger.Info("initial sync done",
		zap.Int("events", st.events.Count()),
		zap.Int("incidents", st.incidents.Count()),
		zap.Int("assets", st.assets.Count()),
		zap.Int("alert_rules", st.alerts.Count()))
}

// refreshToken обновляет токен за минуту до истечения.
func refreshToken(ctx context.Context, sess *session.Session, logger *zap.Logger) {
	const (
		lead     = time.Minute
		fallback = 5 * time.Minute
		minWait  = 5 * time.Second
	)

	for {
		wait := fallback
		exp, ok := sess.ExpiresAt()
		if ok {
			wait = max(time.Until(exp)-lead, minWait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, ok := sess.ExpiresAt(); !ok || !sess.IsAuthenticated() {
			continue
		}
		if sess.RefreshToken(ctx) {
			logger.Info("token refreshed")
		}
	}
}

func refreshDashboard(ctx context.Context, every time.Duration, sess *session.Session, dash *store.DashboardStore, logger *zap.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !sess.IsAuthenticated() {
				continue
			}
			if _, err := dash.RefreshStats(ctx); err != nil {
				logger.Debug("dashboard refresh failed", zap.Error(err))
			}
		}
	}
}
