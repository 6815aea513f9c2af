package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	JWT           JWTConfig
	Chrome        ChromeConfig
	Marketplace   MarketplaceConfig
	Timing        TimingConfig
	TextGen       TextGenConfig
	Images        ImagesConfig
	Mapping       MappingConfig
	Queue         QueueConfig
	History       HistoryConfig
	SelectorsFile string
}

type ServerConfig struct {
	Port         string
	Host         string
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Charset  string
}

type JWTConfig struct {
	Secret     string
	ExpireTime int
}

type ChromeConfig struct {
	HeadlessMode bool
	DebugPort    int
	// DebugURL attaches to an already running browser instead of launching one.
	DebugURL    string
	UserDataDir string
	Width       int
	Height      int
}

type MarketplaceConfig struct {
	BaseURL          string
	CreatePath       string
	DefaultLocation  string
	VehicleTypeValue string
}

func (m MarketplaceConfig) CreateURL() string {
	return m.BaseURL + m.CreatePath
}

// TimingConfig holds every wait and pacing delay the engine uses.
type TimingConfig struct {
	NavigationTimeout      time.Duration
	NavigationInitialDelay time.Duration
	NavigationPoll         time.Duration
	SettleDelay            time.Duration
	ReadyTimeout           time.Duration
	ReadyGrace             time.Duration
	ElementWait            time.Duration
	StepDelay              time.Duration
	FieldPause             time.Duration
	WidgetOpenDelay        time.Duration
	KeystrokeMin           time.Duration
	KeystrokeMax           time.Duration
}

type TextGenConfig struct {
	URL     string
	Timeout time.Duration
}

type ImagesConfig struct {
	MaxImages int
	Timeout   time.Duration
	// BaseURL resolves relative image URLs from the dealership backend.
	BaseURL string
}

type MappingConfig struct {
	Store         string // redis, mysql or memory
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Key           string
	// ConsultInFillers appends the recorded selector as the last candidate of each filler.
	ConsultInFillers bool
}

type QueueConfig struct {
	NATSURL        string
	NATSSubject    string
	SQSQueueURL    string
	SQSWaitSeconds int
	Workers        int
	Buffer         int
}

type HistoryConfig struct {
	RetentionDays int
	PurgeCron     string
}

func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Mode:         getEnv("SERVER_MODE", "debug"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 90),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", true),
			Host:     getEnv("DB_HOST", "127.0.0.1"),
			Port:     getEnv("DB_PORT", "3306"),
			Username: getEnv("DB_USERNAME", "root"),
			Password: getEnv("DB_PASSWORD", "root"),
			Database: getEnv("DB_NAME", "listingpilot"),
			Charset:  getEnv("DB_CHARSET", "utf8mb4"),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "listingpilot-secret-key"),
			ExpireTime: getEnvAsInt("JWT_EXPIRE_TIME", 24*3600),
		},
		Chrome: ChromeConfig{
			HeadlessMode: getEnvAsBool("CHROME_HEADLESS", false),
			DebugPort:    getEnvAsInt("CHROME_DEBUG_PORT", 9222),
			DebugURL:     getEnv("CHROME_DEBUG_URL", ""),
			UserDataDir:  getEnv("CHROME_USER_DATA_DIR", "./chrome-profile"),
			Width:        getEnvAsInt("CHROME_WIDTH", 1366),
			Height:       getEnvAsInt("CHROME_HEIGHT", 900),
		},
		Marketplace: MarketplaceConfig{
			BaseURL:          getEnv("MARKETPLACE_BASE_URL", "https://www.facebook.com"),
			CreatePath:       getEnv("MARKETPLACE_CREATE_PATH", "/marketplace/create/vehicle"),
			DefaultLocation:  getEnv("DEALER_LOCATION", ""),
			VehicleTypeValue: getEnv("VEHICLE_TYPE_VALUE", "car"),
		},
		Timing: TimingConfig{
			NavigationTimeout:      getEnvAsDuration("NAVIGATION_TIMEOUT_MS", 10*time.Second),
			NavigationInitialDelay: getEnvAsDuration("NAVIGATION_INITIAL_DELAY_MS", time.Second),
			NavigationPoll:         getEnvAsDuration("NAVIGATION_POLL_MS", 500*time.Millisecond),
			SettleDelay:            getEnvAsDuration("SETTLE_DELAY_MS", 2*time.Second),
			ReadyTimeout:           getEnvAsDuration("READY_TIMEOUT_MS", 8*time.Second),
			ReadyGrace:             getEnvAsDuration("READY_GRACE_MS", 3*time.Second),
			ElementWait:            getEnvAsDuration("ELEMENT_WAIT_MS", 5*time.Second),
			StepDelay:              getEnvAsDuration("STEP_DELAY_MS", 100*time.Millisecond),
			FieldPause:             getEnvAsDuration("FIELD_PAUSE_MS", 200*time.Millisecond),
			WidgetOpenDelay:        getEnvAsDuration("WIDGET_OPEN_DELAY_MS", 500*time.Millisecond),
			KeystrokeMin:           getEnvAsDuration("KEYSTROKE_MIN_MS", 30*time.Millisecond),
			KeystrokeMax:           getEnvAsDuration("KEYSTROKE_MAX_MS", 90*time.Millisecond),
		},
		TextGen: TextGenConfig{
			URL:     getEnv("TEXTGEN_URL", ""),
			Timeout: getEnvAsDuration("TEXTGEN_TIMEOUT_MS", 15*time.Second),
		},
		Images: ImagesConfig{
			MaxImages: getEnvAsInt("MAX_IMAGES", 3),
			Timeout:   getEnvAsDuration("IMAGE_TIMEOUT_MS", 15*time.Second),
			BaseURL:   getEnv("IMAGE_BASE_URL", ""),
		},
		Mapping: MappingConfig{
			Store:            getEnv("MAPPING_STORE", "redis"),
			RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:    getEnv("REDIS_PASSWORD", ""),
			RedisDB:          getEnvAsInt("REDIS_DB", 0),
			Key:              getEnv("MAPPING_KEY", "listingpilot:field_mappings"),
			ConsultInFillers: getEnvAsBool("USE_FIELD_MAPPINGS", false),
		},
		Queue: QueueConfig{
			NATSURL:        getEnv("NATS_URL", ""),
			NATSSubject:    getEnv("NATS_SUBJECT", "listingpilot.commands"),
			SQSQueueURL:    getEnv("SQS_QUEUE_URL", ""),
			SQSWaitSeconds: getEnvAsInt("SQS_WAIT_SECONDS", 20),
			Workers:        getEnvAsInt("TASK_WORKERS", 2),
			Buffer:         getEnvAsInt("TASK_BUFFER", 64),
		},
		History: HistoryConfig{
			RetentionDays: getEnvAsInt("HISTORY_RETENTION_DAYS", 90),
			PurgeCron:     getEnv("HISTORY_PURGE_CRON", "0 0 3 * * *"),
		},
		SelectorsFile: getEnv("SELECTORS_FILE", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	switch c.Mapping.Store {
	case "redis", "mysql", "memory":
	default:
		return fmt.Errorf("invalid MAPPING_STORE %q: want redis, mysql or memory", c.Mapping.Store)
	}
	if c.Mapping.Store == "mysql" && !c.Database.Enabled {
		return fmt.Errorf("MAPPING_STORE=mysql requires DB_ENABLED=true")
	}
	if c.Timing.KeystrokeMax < c.Timing.KeystrokeMin {
		return fmt.Errorf("KEYSTROKE_MAX_MS must not be lower than KEYSTROKE_MIN_MS")
	}
	if c.Images.MaxImages <= 0 {
		return fmt.Errorf("MAX_IMAGES must be positive")
	}
	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.Charset,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration reads a millisecond count.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
