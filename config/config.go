package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Mode selects which deployment variant the process runs as.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeDevice Mode = "device"
	ModeRelay  Mode = "relay"
)

// DefaultRobotBaseURL is used when ROBOT_BASE_URL is not set.
const DefaultRobotBaseURL = "http://raspberrypi.local:8000"

type Config struct {
	// Application
	Mode      Mode
	HTTPAddr  string
	AdminAddr string
	StatePath string
	LogLevel  string

	// Control defaults
	DefaultSpeed    float64
	DefaultDuration float64

	// Relay
	RobotBaseURL   string
	RelayTransport string
	RelayTimeout   time.Duration

	// Motors
	MotorDriver string
	I2CBus      int
	PCA9685Addr uint16
	PWMFreq     float64

	// MQTT
	MQTTEnabled  bool
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string
	MQTTPrefix   string
	RobotID      string

	// Redis
	StateRedisMirror bool
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int

	// Database
	JournalEnabled bool
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
}

// Load reads an optional .env file and then the process environment.
// A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	relayTimeoutMs, _ := strconv.Atoi(getEnv("RELAY_TIMEOUT_MS", "2500"))
	i2cBus, _ := strconv.Atoi(getEnv("I2C_BUS", "1"))
	pcaAddr, err := strconv.ParseUint(getEnv("PCA9685_ADDR", "0x40"), 0, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid PCA9685_ADDR: %w", err)
	}

	cfg := &Config{
		Mode:      Mode(strings.ToLower(getEnv("MODE", string(ModeDevice)))),
		HTTPAddr:  getEnv("HTTP_ADDR", ":8000"),
		AdminAddr: getEnv("ADMIN_ADDR", ":9090"),
		StatePath: getEnv("STATE_PATH", defaultStatePath()),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		DefaultSpeed:    getFloat("DEFAULT_SPEED", 0.6),
		DefaultDuration: getFloat("DEFAULT_DURATION", 0.6),

		RobotBaseURL:   strings.TrimRight(getEnv("ROBOT_BASE_URL", DefaultRobotBaseURL), "/"),
		RelayTransport: strings.ToLower(getEnv("RELAY_TRANSPORT", "http")),
		RelayTimeout:   time.Duration(relayTimeoutMs) * time.Millisecond,

		MotorDriver: strings.ToLower(getEnv("MOTOR_DRIVER", "pca9685")),
		I2CBus:      i2cBus,
		PCA9685Addr: uint16(pcaAddr),
		PWMFreq:     getFloat("PWM_FREQ", 50),

		MQTTEnabled:  getBool("MQTT_ENABLED", false),
		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "rover-bridge"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),
		MQTTPrefix:   strings.Trim(getEnv("MQTT_TOPIC_PREFIX", "rover"), "/"),
		RobotID:      getEnv("ROBOT_ID", "rover-1"),

		StateRedisMirror: getBool("STATE_REDIS_MIRROR", false),
		RedisHost:        getEnv("REDIS_HOST", "localhost"),
		RedisPort:        getEnv("REDIS_PORT", "6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          redisDB,

		JournalEnabled: getBool("JOURNAL_ENABLED", false),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "password"),
		DBName:         getEnv("DB_NAME", "rover_bridge"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted away.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLocal, ModeDevice, ModeRelay:
	default:
		return fmt.Errorf("unknown mode %q (want local, device or relay)", c.Mode)
	}
	switch c.RelayTransport {
	case "http", "mqtt":
	default:
		return fmt.Errorf("unknown relay transport %q (want http or mqtt)", c.RelayTransport)
	}
	switch c.MotorDriver {
	case "pca9685", "log":
	default:
		return fmt.Errorf("unknown motor driver %q (want pca9685 or log)", c.MotorDriver)
	}
	if c.RelayTimeout <= 0 {
		return fmt.Errorf("relay timeout must be positive, got %v", c.RelayTimeout)
	}
	if c.Mode == ModeRelay && c.RelayTransport == "mqtt" && !c.MQTTEnabled {
		return fmt.Errorf("relay transport mqtt requires MQTT_ENABLED=true")
	}
	return nil
}

// Timed reports whether commands in this mode carry a duration.
func (c *Config) Timed() bool {
	return c.Mode != ModeLocal
}

// RedisAddr returns host:port for the Redis client.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// PostgresDSN returns the connection string for the journal database.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// defaultStatePath places the state file next to the running executable.
func defaultStatePath() string {
	exe, err := os.Executable()
	if err != nil {
		return "robotState.json"
	}
	return filepath.Join(filepath.Dir(exe), "robotState.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}
