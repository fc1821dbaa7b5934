package config

import (
	"errors"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type Config struct {
	Addr        string
	DBDriver    string
	DBUrl       string
	TokenSecret string
	TokenTTL    time.Duration
	UnlockTTL   time.Duration
	SiteURL     string
	Debug       bool

	LogFile    string
	LogMaxSize int

	CaptchaVerifyURL string
	CaptchaSecret    string

	SubmitRate  float64
	SubmitBurst int
	TrustProxy  bool

	KafkaBrokers []string
	KafkaTopic   string

	host string
	port uint
}

// LoadDotEnv overlays variables from .env files onto the process environment.
// Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			return err
		}
	}
	return nil
}

// Register binds every configuration key to fs. Defaults come from SURVEY_*
// environment variables when set.
func Register(fs *pflag.FlagSet) *Config {
	cfg := &Config{}
	fs.StringVar(&cfg.host, "host", env("host", "0.0.0.0"), "listen host name")
	fs.UintVar(&cfg.port, "port", uint(envInt("port", 8080)), "listen port number")
	fs.StringVar(&cfg.DBDriver, "db-driver", env("db-driver", "sqlite3"), "database driver (sqlite3 or postgres)")
	fs.StringVar(&cfg.DBUrl, "db-url", env("db-url", "survey.sqlite"), "SQLite3 file path or Postgres connection URL")
	fs.StringVar(&cfg.TokenSecret, "token-secret", env("token-secret", ""), "secret key for token encryption and decryption")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", envDuration("token-ttl", 2*time.Minute), "access token TTL")
	fs.DurationVar(&cfg.UnlockTTL, "unlock-ttl", envDuration("unlock-ttl", 2*time.Hour), "form unlock token TTL")
	fs.StringVar(&cfg.SiteURL, "site-url", env("site-url", "http://localhost:8080"), "public base URL, used in QR codes")
	fs.BoolVar(&cfg.Debug, "debug", envBool("debug"), "log at DEBUG level")
	fs.StringVar(&cfg.LogFile, "log-file", env("log-file", ""), "also write logs to this rotating file")
	fs.IntVar(&cfg.LogMaxSize, "log-max-size", envInt("log-max-size", 50), "log file size in megabytes before rotation")
	fs.StringVar(&cfg.CaptchaVerifyURL, "captcha-verify-url", env("captcha-verify-url", "https://www.google.com/recaptcha/api/siteverify"), "captcha siteverify endpoint")
	fs.StringVar(&cfg.CaptchaSecret, "captcha-secret", env("captcha-secret", ""), "captcha secret; captcha checks are skipped when empty")
	fs.Float64Var(&cfg.SubmitRate, "submit-rate", envFloat("submit-rate", 0.2), "allowed submissions per second per client IP")
	fs.IntVar(&cfg.SubmitBurst, "submit-burst", envInt("submit-burst", 5), "submission burst per client IP")
	fs.BoolVar(&cfg.TrustProxy, "trust-proxy", envBool("trust-proxy"), "take the client IP from X-Real-IP/X-Forwarded-For (only behind a trusted proxy)")
	fs.StringSliceVar(&cfg.KafkaBrokers, "kafka-brokers", envList("kafka-brokers"), "Kafka brokers for submission events")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", env("kafka-topic", "survey.responses"), "Kafka topic for submission events")
	return cfg
}

// Resolve derives computed fields and validates the result.
func (cfg *Config) Resolve() error {
	if cfg.host != "" || cfg.port != 0 {
		cfg.Addr = net.JoinHostPort(cfg.host, strconv.Itoa(int(cfg.port)))
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")

	switch {
	case cfg.DBDriver != "sqlite3" && cfg.DBDriver != "postgres":
		return errors.New("unsupported --db-driver " + cfg.DBDriver)
	case cfg.TokenSecret == "":
		return errors.New("missing parameter --token-secret")
	case cfg.TokenTTL <= 0 || cfg.UnlockTTL <= 0:
		return errors.New("token TTLs must be positive")
	}
	return nil
}

var reAnyHost = regexp.MustCompile(`^0\.0\.0\.0`)

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = reAnyHost.ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func envKey(name string) string {
	return "SURVEY_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func env(name, fallback string) string {
	if v := os.Getenv(envKey(name)); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(envKey(name))); err == nil {
		return n
	}
	return fallback
}

func envFloat(name string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(envKey(name)), 64); err == nil {
		return f
	}
	return fallback
}

func envBool(name string) bool {
	b, _ := strconv.ParseBool(os.Getenv(envKey(name)))
	return b
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(envKey(name))); err == nil {
		return d
	}
	return fallback
}

func envList(name string) []string {
	v := os.Getenv(envKey(name))
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}
