package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config: корневая структура конфигурации Trust Center.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Source   SourceConfig   `mapstructure:"source"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Logger   LoggerConfig   `mapstructure:"logger"`

	// InstanceID отличает инстансы в кластере (сигналы перезагрузки, журнал)
	InstanceID string `mapstructure:"instance_id"`
}

// ServerConfig описывает настройки HTTP и gRPC серверов.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// SourceConfig описывает, откуда брать артефакты валидации и как часто.
type SourceConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Dir             string        `mapstructure:"dir"` // локальный каталог вместо HTTP
	CacheBust       bool          `mapstructure:"cache_bust"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RetryAttempts   uint          `mapstructure:"retry_attempts"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	CBFailures      uint32        `mapstructure:"cb_failures"`
	CBTimeout       time.Duration `mapstructure:"cb_timeout"`
}

// DatabaseConfig описывает подключение к PostgreSQL (журнал загрузок). Пустой URL, журнал в памяти.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (кэш снапшота и Pub/Sub). Пустой Addr, без Redis.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

// AuthConfig: внешний эмитент токенов и опциональный ключ для проверки подписи.
type AuthConfig struct {
	IssuerURL     string        `mapstructure:"issuer_url"`
	IssuerTimeout time.Duration `mapstructure:"issuer_timeout"`
	PublicKeyPath string        `mapstructure:"public_key_path"`
	Leeway        time.Duration `mapstructure:"leeway"`
	PublicKey     []byte
}

// JournalConfig настраивает асинхронный журнал загрузок.
type JournalConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	MemoryLimit   int           `mapstructure:"memory_limit"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	return LoadConfigOverrides("", nil)
}

// LoadConfigFile читает конфигурацию из явно указанного файла (флаг -config).
func LoadConfigFile(path string) (*Config, error) {
	return LoadConfigOverrides(path, nil)
}

// LoadConfigOverrides как LoadConfigFile, но значения overrides (флаги CLI) перекрывают и файл, и ENV.
// Ключи в нотации viper: "source.dir", "logger.level".
func LoadConfigOverrides(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	if path == "" {
		// 1. Настройка поиска файла
		v.SetConfigName("config")    // имя файла без расширения
		v.SetConfigType("yaml")      // формат
		v.AddConfigPath(".")         // ищем в корне
		v.AddConfigPath("./configs") // и в папке с конфигами
	} else {
		v.SetConfigFile(path)
	}
	return loadFrom(v, overrides)
}

func loadFrom(v *viper.Viper, overrides map[string]any) (*Config, error) {
	// 2. Переменные окружения перекрывают конфиг: SOURCE_BASE_URL перекроет source.base_url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет, работаем на ENV и дефолтах
	}

	for k, val := range overrides {
		v.Set(k, val)
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Ключ проверки подписи из ENV или файла
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	if cfg.InstanceID == "" {
		host, _ := os.Hostname()
		cfg.InstanceID = host + "-" + uuid.New().String()[:8]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные параметры.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" && c.Source.Dir == "" {
		return errors.New("config: source.base_url or source.dir is required")
	}
	if c.Source.RefreshInterval < 0 {
		return errors.New("config: source.refresh_interval must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Пустые дефолты нужны, чтобы viper увидел ENV при Unmarshal
	v.SetDefault("instance_id", "")
	v.SetDefault("source.base_url", "")
	v.SetDefault("source.dir", "")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("auth.issuer_url", "")
	v.SetDefault("auth.public_key_path", "")

	v.SetDefault("source.cache_bust", true)
	v.SetDefault("source.refresh_interval", 5*time.Minute)
	v.SetDefault("source.request_timeout", 10*time.Second)
	v.SetDefault("source.retry_attempts", 3)
	v.SetDefault("source.rate_limit", 20)
	v.SetDefault("source.rate_burst", 10)
	v.SetDefault("source.cb_failures", 5)
	v.SetDefault("source.cb_timeout", 30*time.Second)

	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 2)

	v.SetDefault("redis.snapshot_ttl", 24*time.Hour)

	v.SetDefault("auth.issuer_timeout", 10*time.Second)

	v.SetDefault("journal.buffer_size", 1000)
	v.SetDefault("journal.batch_size", 100)
	v.SetDefault("journal.flush_interval", 1*time.Second)
	v.SetDefault("journal.memory_limit", 200)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// loadKeyResource: ключ из ENV (PEM целиком) или из файла по пути из конфига
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
