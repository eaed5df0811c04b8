package configuration

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		panic(err)
	}
	return c
})

// LoadEnv loads the given env files if they exist and reports how many were found.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

type DatabaseOptions struct {
	Name     string `env:"DB_NAME" envDefault:"docflow"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type RedisOptions struct {
	URL string `env:"REDIS_URL"`
}

type UploadOptions struct {
	Dir         string `env:"UPLOADS_DIR" envDefault:"uploads"`
	MaxSizeMB   int    `env:"UPLOADS_MAX_SIZE_MB" envDefault:"25"`
	AllowedExts string `env:"UPLOADS_ALLOWED_EXTS" envDefault:".pdf,.doc,.docx,.xls,.xlsx,.odt,.ods,.txt"`
}

type Configuration struct {
	Database DatabaseOptions
	Redis    RedisOptions
	Uploads  UploadOptions

	GoAppEnvironment string        `env:"GO_APP_ENV" envDefault:"development"`
	ServerAddress    string        `env:"SERVER_ADDRESS" envDefault:":8080"`
	ReadTimeout      time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout     time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"error"`

	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	TenantIDHeader  string `env:"TENANT_ID_HEADER" envDefault:"X-Tenant-ID"`
	UserIDHeader    string `env:"USER_ID_HEADER" envDefault:"X-User-ID"`
	UserRoleHeader  string `env:"USER_ROLE_HEADER" envDefault:"X-User-Role"`

	// RLSEnforce toggles Postgres row-level-security tenant scoping: disabled|enforce.
	RLSEnforce string `env:"RLS_ENFORCE" envDefault:"disabled"`

	StatsCacheTTL time.Duration `env:"STATS_CACHE_TTL" envDefault:"30s"`
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch strings.ToLower(c.LogLevel) {
	case "silent", "none":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	case "trace":
		return logrus.TraceLevel
	default:
		return logrus.ErrorLevel
	}
}

func (c *Configuration) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogrusLogLevel())
	if c.GoAppEnvironment == Production {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	if _, err := LoadEnv(envFiles); err != nil {
		return err
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	return c.validateRLS()
}

func (c *Configuration) validateRLS() error {
	mode := strings.ToLower(strings.TrimSpace(c.RLSEnforce))
	switch mode {
	case "", "disabled":
		mode = "disabled"
	case "enforce":
	default:
		return fmt.Errorf("invalid RLS_ENFORCE=%q (expected disabled|enforce)", c.RLSEnforce)
	}
	c.RLSEnforce = mode
	return nil
}
