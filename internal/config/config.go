package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types

	"github.com/joho/godotenv" // loads a local .env file during development
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and costs.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	DBMaxOpen      int    // connection pool: max open connections
	DBMaxIdle      int    // connection pool: max idle connections
	DBConnLifeMin  int    // connection pool: max connection lifetime in minutes
	AccessSecret   string // secret used to sign access tokens
	RefreshSecret  string // distinct secret used to sign refresh tokens
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	ClientURL      string // public origin used to build post-payment redirect URLs
	PaymentAPIURL  string // base URL of the payment processor API
	PaymentAPIKey  string // secret API key for the payment processor
	MinioEndpoint  string // image store endpoint (host:port)
	MinioAccessKey string // image store access key
	MinioSecretKey string // image store secret key
	MinioBucket    string // bucket holding product images
	MinioUseSSL    bool   // whether to talk to the image store over TLS
	MinioPublicURL string // public base URL images are served from
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message. A .env file is
// consulted first so local development does not need exported variables.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		DBMaxOpen:      intOr("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdle:      intOr("DB_MAX_IDLE_CONNS", 25),
		DBConnLifeMin:  intOr("DB_CONN_LIFETIME_MIN", 30),
		AccessSecret:   must("ACCESS_TOKEN_SECRET"),
		RefreshSecret:  must("REFRESH_TOKEN_SECRET"),
		AccessTTLMin:   intOr("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: intOr("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     intOr("BCRYPT_COST", 10),
		ClientURL:      must("CLIENT_URL"),
		PaymentAPIURL:  must("PAYMENT_API_URL"),
		PaymentAPIKey:  must("PAYMENT_API_KEY"),
		MinioEndpoint:  must("MINIO_ENDPOINT"),
		MinioAccessKey: must("MINIO_ACCESS_KEY"),
		MinioSecretKey: must("MINIO_SECRET_KEY"),
		MinioBucket:    getenv("MINIO_BUCKET", "products"),
		MinioUseSSL:    getenv("MINIO_USE_SSL", "false") == "true",
		MinioPublicURL: must("MINIO_PUBLIC_URL"),
	}
}

// MigrateDSN returns the database URL golang-migrate expects.
func (c Config) MigrateDSN() string {
	auth := c.DBUser
	if c.DBPass != "" {
		auth += ":" + c.DBPass
	}
	return "mysql://" + auth + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// getenv returns the variable's value or a default when unset.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// intOr parses an integer variable, falling back to a default when the
// variable is unset. A present-but-malformed value is fatal.
func intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
