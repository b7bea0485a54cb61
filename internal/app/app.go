package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ykvlv/legendalf-bot/internal/access"
	"github.com/ykvlv/legendalf-bot/internal/config"
	"github.com/ykvlv/legendalf-bot/internal/content"
	"github.com/ykvlv/legendalf-bot/internal/dispatch"
	"github.com/ykvlv/legendalf-bot/internal/events"
	"github.com/ykvlv/legendalf-bot/internal/httpapi"
	"github.com/ykvlv/legendalf-bot/internal/registry"
	"github.com/ykvlv/legendalf-bot/internal/retry"
	"github.com/ykvlv/legendalf-bot/internal/scheduler"
	"github.com/ykvlv/legendalf-bot/internal/store"
	"github.com/ykvlv/legendalf-bot/internal/telegram"
)

const holidayCacheDays = 3

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	clock   clockwork.Clock
	httpSrv *http.Server
	repo    *store.SQLRepo
	bus     events.Bus
	access  *access.Service
	router  *telegram.Router
	notify  *telegram.Notifier
	sched   *scheduler.Scheduler
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	return &App{cfg: cfg, log: log, bot: bot, clock: clockwork.NewRealClock()}, nil
}

// wire opens the store and builds every service on top of it.
func (a *App) wire(ctx context.Context) error {
	repo, err := store.Open(ctx, store.Options{Driver: a.cfg.DBDriver, Path: a.cfg.DBPath, DSN: a.cfg.DatabaseURL})
	if err != nil {
		return err
	}
	a.repo = repo
	a.log.Info("store ready", zap.String("driver", repo.Dialect()))

	imported, err := store.ImportLegacy(ctx, repo, a.cfg.LegacyJSONPath, a.cfg.DefaultTZ, a.clock.Now())
	if err != nil {
		return err
	}
	if imported {
		a.log.Info("legacy users imported", zap.String("path", a.cfg.LegacyJSONPath))
	}

	a.bus = events.NewBus(a.log)
	a.access = access.New(repo, a.bus, a.clock, a.log)
	if err := a.access.SyncAdmins(ctx, a.cfg.AdminIDs); err != nil {
		return err
	}
	reg := registry.New(repo, a.cfg.DefaultTZ)

	quotes := content.NewQuoteBook(a.cfg.QuotesFile)
	media := content.NewMediaLibrary(a.cfg.MediaDir)
	disp := dispatch.New(dispatch.Deps{
		Sender:   telegram.NewSender(a.bot),
		Holidays: content.NewCachedHolidays(content.UnavailableHolidays{Name: "holidays"}, holidayCacheDays),
		Films:    content.UnavailableFilms{Name: "films"},
		Quotes:   quotes,
		Media:    media,
		Log:      a.log.Named("dispatch"),
	})

	a.notify = telegram.NewNotifier(a.bot, a.access, retry.Short, a.log.Named("notify"))
	if err := a.notify.Subscribe(a.bus); err != nil {
		return err
	}
	a.router = telegram.NewRouter(telegram.Deps{
		Client:   a.bot,
		Access:   a.access,
		Registry: reg,
		Content:  disp,
		Quotes:   quotes,
		Media:    media,
		Clock:    a.clock,
		Log:      a.log.Named("router"),
	})
	a.sched = scheduler.New(scheduler.Deps{
		Repo:       repo,
		Dispatcher: disp,
		Clock:      a.clock,
		Log:        a.log.Named("scheduler"),
		Interval:   a.cfg.PollInterval,
		DefaultTZ:  a.cfg.DefaultTZ,
	})

	a.httpSrv = &http.Server{
		Addr: a.cfg.HTTPAddr,
		Handler: httpapi.NewEngine(httpapi.Deps{
			Store:    repo,
			Metrics:  a.sched.Metrics(),
			Interval: a.sched.Interval(),
			Clock:    a.clock,
			Log:      a.log.Named("http"),
		}),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting legendalf-bot",
		zap.String("bot", a.bot.Self.UserName),
		zap.String("http", a.cfg.HTTPAddr),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.wire(ctx); err != nil {
		a.log.Error("startup failed", zap.Error(err))
		a.close()
		return err
	}
	defer a.close()

	telegram.SetupCommands(ctx, a.bot, a.access, a.log)
	a.notify.Announce(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.sched.Run(ctx)
	}()

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.bot.StopReceivingUpdates()

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()
			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			wg.Wait()
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

func (a *App) close() {
	if a.bus != nil {
		_ = a.bus.Close()
	}
	if a.repo != nil {
		_ = a.repo.Close()
	}
}
