package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию бота.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"America/Bogota"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token         string `envconfig:"TG_BOT_TOKEN" required:"true"`
		WebhookURL    string `envconfig:"TG_WEBHOOK_URL"`
		WebhookSecret string `envconfig:"TG_WEBHOOK_SECRET"`
		RPS           int    `envconfig:"TG_RPS" default:"20"`
		RetryMax      int    `envconfig:"TG_RETRY_MAX" default:"3"`
	} `envconfig:""`

	Channels struct {
		PublicID         int64 `envconfig:"PUBLIC_CHANNEL_ID" default:"-1002679848195"`
		JustificationsID int64 `envconfig:"JUSTIFICATIONS_CHAT_ID" default:"-1003058530208"`
	} `envconfig:""`

	AdminUserIDs []int64 `envconfig:"ADMIN_USER_IDS"`

	Delivery struct {
		AutoDeleteMinutes int           `envconfig:"AUTO_DELETE_MINUTES" default:"10"`
		SweepInterval     time.Duration `envconfig:"SWEEP_INTERVAL" default:"60s"`
		DeeplinkTimeout   time.Duration `envconfig:"DEEPLINK_TIMEOUT" default:"10s"`
		CopyDelay         time.Duration `envconfig:"DELIVERY_COPY_DELAY" default:"300ms"`
		CompanionsFile    string        `envconfig:"COMPANION_MESSAGES_FILE"`
	} `envconfig:""`

	Ads struct {
		MinInterval time.Duration `envconfig:"ADS_MIN_INTERVAL" default:"1m"`
		SettleDelay time.Duration `envconfig:"ADS_SETTLE_DELAY" default:"500ms"`
	} `envconfig:""`

	Batch struct {
		ItemDelay time.Duration `envconfig:"BATCH_ITEM_DELAY" default:"1500ms"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	ChannelCacheTTL time.Duration `envconfig:"CHANNEL_CACHE_TTL" default:"24h"`
	UpdateDedupTTL  time.Duration `envconfig:"UPDATE_DEDUP_TTL" default:"10m"`
}

// Retention возвращает срок хранения доставленного контента.
func (c AppConfig) Retention() time.Duration {
	if c.Delivery.AutoDeleteMinutes <= 0 {
		return 0
	}
	return time.Duration(c.Delivery.AutoDeleteMinutes) * time.Minute
}

// Load загружает конфиг из .env (если есть) и окружения.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает конфиг без завершения процесса при ошибке.
func Parse() (AppConfig, error) {
	// отсутствие .env — нормальная ситуация
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
