package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

type Env struct {
	AppAddr         string
	GinMode         string
	Store           string
	DBDSN           string
	JWTSecret       string
	Location        *time.Location
	PendingTTL      time.Duration
	SessionTTL      time.Duration
	ReaperInterval  time.Duration
	NATSURL         string
	SeedFile        string
	RateLimitPerMin int
	CORSOrigins     []string
}

// InvalidEnvError names the variable that failed to parse.
type InvalidEnvError struct {
	Key   string
	Value string
	Err   error
}

func (e InvalidEnvError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s=%q: %v", e.Key, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s=%q", e.Key, e.Value)
}

func (e InvalidEnvError) Unwrap() error { return e.Err }

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

// LoadEnv reads the process environment after loading an optional .env file.
func LoadEnv() (Env, error) {
	_ = godotenv.Load()
	return loadEnv(os.Getenv)
}

func loadEnv(getenv func(string) string) (Env, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	env := Env{
		AppAddr:   get("APP_ADDR", ":8080"),
		GinMode:   get("GIN_MODE", ""),
		Store:     strings.ToLower(get("STORE", StoreMySQL)),
		DBDSN:     get("DB_DSN", "root:@tcp(127.0.0.1:3306)/gocart?parseTime=true&loc=Local&charset=utf8mb4&timeout=5s&readTimeout=30s&writeTimeout=30s"),
		JWTSecret: get("JWT_SECRET", "change-me"),
		NATSURL:   get("NATS_URL", ""),
		SeedFile:  get("SEED_FILE", ""),
	}

	if env.Store != StoreMySQL && env.Store != StoreMemory {
		return Env{}, InvalidEnvError{Key: "STORE", Value: env.Store}
	}

	tz := get("TZ", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Env{}, InvalidEnvError{Key: "TZ", Value: tz, Err: err}
	}
	env.Location = loc

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"PENDING_TTL", 15 * time.Minute, &env.PendingTTL},
		{"SESSION_TTL", 30 * time.Minute, &env.SessionTTL},
		{"REAPER_INTERVAL", time.Minute, &env.ReaperInterval},
	}
	for _, d := range durations {
		raw := get(d.key, "")
		if raw == "" {
			*d.dst = d.def
			continue
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			return Env{}, InvalidEnvError{Key: d.key, Value: raw, Err: err}
		}
		if v <= 0 {
			return Env{}, InvalidEnvError{Key: d.key, Value: raw}
		}
		*d.dst = v
	}

	rawRate := get("RATE_LIMIT_PER_MIN", "60")
	rate, err := strconv.Atoi(rawRate)
	if err != nil || rate < 0 {
		return Env{}, InvalidEnvError{Key: "RATE_LIMIT_PER_MIN", Value: rawRate, Err: err}
	}
	env.RateLimitPerMin = rate

	env.CORSOrigins = defaultCORSOrigins
	if raw := get("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		env.CORSOrigins = nil
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				env.CORSOrigins = append(env.CORSOrigins, o)
			}
		}
	}

	return env, nil
}
