package daemon

import (
	"context"

	"github.com/matheus3301/souk/internal/activity"
	"github.com/matheus3301/souk/internal/api"
	"github.com/matheus3301/souk/internal/auth"
	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/bus"
	"github.com/matheus3301/souk/internal/chat"
	"github.com/matheus3301/souk/internal/config"
	"github.com/matheus3301/souk/internal/httpapi"
	"github.com/matheus3301/souk/internal/lock"
	"github.com/matheus3301/souk/internal/logging"
	"github.com/matheus3301/souk/internal/outbox"
	"github.com/matheus3301/souk/internal/realtime"
	"github.com/matheus3301/souk/internal/session"
	"github.com/matheus3301/souk/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string         // optional override for testing; empty = use default
	Config      *config.Config // optional; nil = load from ~/.souk
	Debug       bool
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideTokens,
			provideHTTPClient,
			backend.NewAuthAPI,
			backend.NewChatAPI,
			backend.NewMarketAPI,
			backend.NewCartAPI,
			backend.NewOrderAPI,
			backend.NewSellerAPI,
			provideRealtime,
			provideChatStore,
			provideFeed,
			provideQueue,
			provideChatService,
			provideSender,
			provideSessionService,
			provideChatAPIService,
			provideActivityService,
			provideMarketService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	return session.Config()
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, p.Debug)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName), cfg.APIBaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore takes the lock as a dependency so the database is never opened
// by a second daemon.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideTokens(db *store.DB) (*auth.Store, error) {
	return auth.NewStore(db)
}

func provideHTTPClient(cfg *config.Config, tokens *auth.Store, logger *zap.Logger) *httpapi.Client {
	return httpapi.New(httpapi.Options{
		BaseURL:     cfg.APIBaseURL,
		Timeout:     cfg.RequestTimeout(),
		MaxAttempts: cfg.HTTP.MaxAttempts,
	}, tokens, logger.Named("http"))
}

func realtimeOptions(cfg *config.Config) realtime.Options {
	return realtime.Options{
		BaseURL:     cfg.WebSocketURL(),
		MaxAttempts: cfg.Realtime.MaxReconnectAttempts,
		BaseDelay:   cfg.ReconnectBase(),
	}
}

func provideRealtime(cfg *config.Config, tokens *auth.Store, b *bus.Bus, logger *zap.Logger) *realtime.Conn {
	return realtime.NewGlobal(realtimeOptions(cfg), tokens, b, logger.Named("realtime"))
}

func provideChatStore(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *chat.Store {
	return chat.NewStore(chat.StoreOptions{TypingTTL: cfg.TypingTTL()}, b, logger.Named("chat"))
}

func provideFeed(b *bus.Bus, logger *zap.Logger) *activity.Feed {
	return activity.NewFeed(activity.DefaultCapacity, b, logger.Named("activity"))
}

func provideQueue(db *store.DB, b *bus.Bus) *outbox.Queue {
	return outbox.NewQueue(db, b)
}

func provideChatService(
	cfg *config.Config,
	st *chat.Store,
	global *realtime.Conn,
	chatAPI *backend.ChatAPI,
	authAPI *backend.AuthAPI,
	db *store.DB,
	queue *outbox.Queue,
	feed *activity.Feed,
	tokens *auth.Store,
	b *bus.Bus,
	logger *zap.Logger,
) *chat.Service {
	opts := chat.ServiceOptions{PerChatSockets: cfg.Realtime.PerChatSockets}
	if opts.PerChatSockets {
		opts.NewChatLink = func(chatID backend.ID) chat.Link {
			return realtime.NewChat(chatID, realtimeOptions(cfg), tokens, b, logger.Named("realtime"))
		}
	}
	return chat.NewService(chat.Deps{
		Store:    st,
		Global:   global,
		API:      chatAPI,
		Profile:  authAPI,
		Archive:  db,
		Queue:    queue,
		Notifier: feed,
	}, opts, logger.Named("chat"))
}

func provideSender(db *store.DB, svc *chat.Service, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, svc, b, outbox.Options{}, logger.Named("outbox"))
}

func provideSessionService(p Params, authAPI *backend.AuthAPI, tokens *auth.Store, svc *chat.Service, global *realtime.Conn, feed *activity.Feed, db *store.DB, b *bus.Bus, logger *zap.Logger) *api.SessionService {
	return api.NewSessionService(p.SessionName, api.SessionDeps{
		Auth:     authAPI,
		Tokens:   tokens,
		Chat:     svc,
		Realtime: global,
		Feed:     feed,
		DB:       db,
		Bus:      b,
	}, logger)
}

func provideChatAPIService(svc *chat.Service, db *store.DB) *api.ChatService {
	return api.NewChatService(svc, db)
}

func provideActivityService(feed *activity.Feed) *api.ActivityService {
	return api.NewActivityService(feed)
}

func provideMarketService(m *backend.MarketAPI, c *backend.CartAPI, o *backend.OrderAPI, s *backend.SellerAPI, logger *zap.Logger) *api.MarketService {
	return api.NewMarketService(m, c, o, s, logger.Named("market"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, svc *chat.Service, sessionSvc *api.SessionService, sender *outbox.Sender, logger *zap.Logger) {
	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			sender.Start(ctx)
			go sessionSvc.Resume(ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			sender.Stop()
			svc.Stop()
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
