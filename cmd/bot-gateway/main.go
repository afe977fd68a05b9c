package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"clinicase-bot/internal/adapters/bot"
	"clinicase-bot/internal/adapters/repo"
	"clinicase-bot/internal/adapters/telegram"
	"clinicase-bot/internal/domain"
	"clinicase-bot/internal/infra/cache"
	"clinicase-bot/internal/infra/config"
	"clinicase-bot/internal/infra/db"
	infrahttp "clinicase-bot/internal/infra/http"
	"clinicase-bot/internal/infra/log"
	"clinicase-bot/internal/infra/metrics"
	"clinicase-bot/internal/usecase/ads"
	"clinicase-bot/internal/usecase/batch"
	"clinicase-bot/internal/usecase/channels"
	"clinicase-bot/internal/usecase/deeplink"
	"clinicase-bot/internal/usecase/delivery"
	"clinicase-bot/internal/usecase/markup"
	"clinicase-bot/internal/usecase/session"
)

const webhookPath = "/bot/webhook"

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("неизвестная таймзона")
	}

	ctx := context.Background()

	var recorder domain.BusinessMetricRepo = domain.NopBusinessMetrics{}
	var async *repo.Async
	if cfg.PGDSN != "" {
		pool, err := db.Connect(ctx, cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
		}
		defer pool.Close()
		pg := repo.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("не удалось подготовить схему БД")
		}
		async = repo.NewAsync(pg, log.Component(logger, "metrics_repo"))
		recorder = async
	} else {
		logger.Warn().Msg("PG_DSN не задан: бизнес-метрики не сохраняются")
	}

	var shared domain.Cache
	var dedup domain.Cache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось подключиться к redis")
		}
		defer rdb.Close()
		redisCache := cache.NewRedis(rdb)
		shared, dedup = redisCache, redisCache
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	client := telegram.NewClient(botAPI, botAPI.Self.UserName, telegram.Config{
		RPS:      cfg.Telegram.RPS,
		RetryMax: cfg.Telegram.RetryMax,
	}, log.Component(logger, "telegram"))

	companions, err := delivery.LoadCompanions(cfg.Delivery.CompanionsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось загрузить сопроводительные сообщения")
	}

	codec := deeplink.NewCodec(cfg.Channels.PublicID)
	compiler := markup.NewCompiler(codec, log.Component(logger, "markup"))
	resolver := channels.NewResolver(client, shared, cfg.ChannelCacheTTL, log.Component(logger, "channels"))
	scheduler := delivery.NewScheduler(client, resolver, companions, delivery.Config{
		Retention: cfg.Retention(),
		CopyDelay: cfg.Delivery.CopyDelay,
	}, log.Component(logger, "delivery"))
	rotator := ads.NewRotator(client, recorder, ads.Config{
		ChannelID:   cfg.Channels.PublicID,
		MinInterval: cfg.Ads.MinInterval,
		SettleDelay: cfg.Ads.SettleDelay,
	}, log.Component(logger, "ads"))
	publisher := batch.NewPublisher(client, recorder, cfg.Channels.PublicID, cfg.Batch.ItemDelay, log.Component(logger, "batch"))

	h := bot.NewHandler(bot.Deps{
		Messenger: client,
		Codec:     codec,
		Compiler:  compiler,
		Delivery:  scheduler,
		Rotator:   rotator,
		Publisher: publisher,
		Sessions:  session.NewStore(),
		Recorder:  recorder,
		Dedup:     dedup,
	}, bot.Config{
		Admins:          cfg.AdminUserIDs,
		DeeplinkTimeout: cfg.Delivery.DeeplinkTimeout,
		AdsMinInterval:  cfg.Ads.MinInterval,
		DedupTTL:        cfg.UpdateDedupTTL,
	}, log.Component(logger, "bot"))
	dispatcher := bot.NewDispatcher(h.HandleUpdate, log.Component(logger, "dispatcher"))

	sweeper := cron.New(cron.WithLocation(loc))
	if cfg.Retention() > 0 {
		if _, err := sweeper.AddFunc(fmt.Sprintf("@every %s", cfg.Delivery.SweepInterval), func() {
			if removed := scheduler.Sweep(ctx); removed > 0 {
				logger.Info().Int("removed", removed).Msg("просроченный контент удалён")
			}
		}); err != nil {
			logger.Fatal().Err(err).Msg("не удалось запланировать очистку")
		}
	}
	sweeper.Start()

	srv := infrahttp.NewServer(logger)
	if cfg.Telegram.WebhookURL != "" {
		srv.Router.With(infrahttp.WebhookSecretMiddleware(cfg.Telegram.WebhookSecret)).Post(webhookPath, func(w http.ResponseWriter, r *http.Request) {
			var update tgbotapi.Update
			if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			dispatcher.Dispatch(update)
			w.WriteHeader(http.StatusOK)
		})
		if err := client.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			logger.Fatal().Err(err).Msg("не удалось зарегистрировать вебхук")
		}
		logger.Info().Str("url", cfg.Telegram.WebhookURL).Msg("вебхук зарегистрирован")
	} else {
		if err := client.DeleteWebhook(ctx); err != nil {
			logger.Warn().Err(err).Msg("не удалось снять вебхук")
		}
		updates := botAPI.GetUpdatesChan(tgbotapi.UpdateConfig{Timeout: 60, AllowedUpdates: telegram.AllowedUpdates})
		go func() {
			for update := range updates {
				dispatcher.Dispatch(update)
			}
		}()
		logger.Info().Msg("long polling запущен")
	}

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()
	logger.Info().Str("bot", botAPI.Self.UserName).Int("admins", len(cfg.AdminUserIDs)).Msg("бот-гейтвей запущен")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if cfg.Telegram.WebhookURL == "" {
		botAPI.StopReceivingUpdates()
	}
	_ = srv.Shutdown(shutdownCtx)
	<-sweeper.Stop().Done()
	dispatcher.Close()
	rotator.Close()
	if async != nil {
		async.Close()
	}
}
