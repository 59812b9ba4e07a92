package config

import (
	"bufio"   // Line scanning for the allow-list file
	"errors"  // Error inspection
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // String manipulation
	"time"    // Durations

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort         string        // Application port
	DBDriver        string        // Database driver: mysql or sqlite
	DBUser          string        // Database user
	DBPassword      string        // Database password
	DBHost          string        // Database host
	DBPort          string        // Database port
	DBName          string        // Database name
	DBPath          string        // SQLite database file
	JWTSecret       string        // JWT secret key
	TokenTTL        time.Duration // Lifetime of issued tokens
	RedisAddr       string        // Redis server address
	RedisPass       string        // Redis password
	RedisDB         int           // Redis database number
	IsProd          bool          // Is production environment
	LogLevel        string        // Logrus level name
	EditorAllowlist string        // Path to the editor e-mail allow-list
	RFIDAPIKey      string        // Shared key for scanner routes, empty disables the check
	WeeksShown      int           // Completed weeks in the time overview
	RateLimit       int           // Requests per minute on auth and scanner routes
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:         getenv("APP_PORT", "8080"),
		DBDriver:        getenv("DB_DRIVER", "mysql"),
		DBUser:          os.Getenv("DB_USER"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		DBHost:          getenv("DB_HOST", "127.0.0.1"),
		DBPort:          getenv("DB_PORT", "3306"),
		DBName:          os.Getenv("DB_NAME"),
		DBPath:          getenv("DB_PATH", "traveltogether.db"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		TokenTTL:        getDuration("TOKEN_TTL", 24*time.Hour),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPass:       os.Getenv("REDIS_PASS"),
		RedisDB:         redisDB,
		IsProd:          os.Getenv("IS_PROD") == "true",
		LogLevel:        getenv("LOG_LEVEL", "info"),
		EditorAllowlist: getenv("EDITOR_ALLOWLIST", "editors.txt"),
		RFIDAPIKey:      os.Getenv("RFID_API_KEY"),
		WeeksShown:      getInt("WEEKS_SHOWN", 4),
		RateLimit:       getInt("RATE_LIMIT_PER_MINUTE", 60),
	}
}

// DSN builds the data source name for the configured driver
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.DBPath
	}
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

// LoadAllowlist reads the editor allow-list: one e-mail per line, blank lines
// and lines starting with '#' are skipped. A missing file yields an empty list.
func LoadAllowlist(path string) (map[string]struct{}, error) {
	emails := make(map[string]struct{})
	if path == "" {
		return emails, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return emails, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		emails[strings.ToLower(line)] = struct{}{}
	}
	return emails, scanner.Err()
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
