package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/stun/v3"
	"gopkg.in/yaml.v3"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

// Config is the full service configuration
type Config struct {
	HTTPPort string `yaml:"httpPort"`
	// Storage selects the session store: "mongo" or "memory" (single process, not durable)
	Storage       string `yaml:"storage"`
	MongoURI      string `yaml:"mongoUri"`
	MongoDatabase string `yaml:"mongoDatabase"`
	RedisAddr     string `yaml:"redisAddr"` // empty runs without the membership cache
	JWTSecret     string `yaml:"jwtSecret"`

	CORS        CORSConfig        `yaml:"cors"`
	Log         LogConfig         `yaml:"log"`
	Calls       CallsConfig       `yaml:"calls"`
	Relay       RelayConfig       `yaml:"relay"`
	Emotion     EmotionConfig     `yaml:"emotion"`
	WebRTC      WebRTCConfig      `yaml:"webrtc"`
	Recognition RecognitionConfig `yaml:"recognition"`
}

type CORSConfig struct {
	AllowedOrigins string `yaml:"allowedOrigins"`
	AllowedMethods string `yaml:"allowedMethods"`
	AllowedHeaders string `yaml:"allowedHeaders"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// CallsConfig controls the call lifecycle policies
type CallsConfig struct {
	// RingTimeout is how long a call may stay pending before it is marked missed
	RingTimeout time.Duration `yaml:"ringTimeout"`
	// SweepInterval is how often pending calls are checked against RingTimeout
	SweepInterval   time.Duration `yaml:"sweepInterval"`
	EndOnDisconnect bool          `yaml:"endOnDisconnect"`
	HistoryLimit    int           `yaml:"historyLimit"`
	MaxHistoryLimit int           `yaml:"maxHistoryLimit"`
}

type RelayConfig struct {
	// EnforceMembership rejects signals whose sender or target is not a participant
	EnforceMembership bool `yaml:"enforceMembership"`
}

type EmotionConfig struct {
	PersistThreshold float64 `yaml:"persistThreshold"`
	StoreFrames      bool    `yaml:"storeFrames"`
	FrameRate        float64 `yaml:"frameRate"`
	FrameBurst       int     `yaml:"frameBurst"`
}

type WebRTCConfig struct {
	STUNURLs             []string `yaml:"stunUrls"`
	TURNURL              string   `yaml:"turnUrl"`
	TURNUsername         string   `yaml:"turnUsername"`
	TURNCredential       string   `yaml:"turnCredential"`
	ICECandidatePoolSize uint8    `yaml:"iceCandidatePoolSize"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		HTTPPort:      "8080",
		Storage:       StorageMongo,
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "heartspeak",
		CORS: CORSConfig{
			AllowedOrigins: "*",
			AllowedMethods: "GET, POST, PUT, DELETE, OPTIONS",
			AllowedHeaders: "Content-Type, Authorization",
		},
		Log: LogConfig{Level: "info"},
		Calls: CallsConfig{
			RingTimeout:     45 * time.Second,
			SweepInterval:   5 * time.Second,
			EndOnDisconnect: true,
			HistoryLimit:    20,
			MaxHistoryLimit: 100,
		},
		Emotion: EmotionConfig{
			PersistThreshold: 0.3,
			FrameRate:        4,
			FrameBurst:       8,
		},
		WebRTC: WebRTCConfig{
			STUNURLs: []string{
				"stun:stun.l.google.com:19302",
				"stun:stun1.l.google.com:19302",
				"stun:stun2.l.google.com:19302",
				"stun:stun3.l.google.com:19302",
				"stun:stun4.l.google.com:19302",
			},
			ICECandidatePoolSize: 10,
		},
		Recognition: DefaultRecognitionConfig(),
	}
}

// Load reads the YAML file at path (or the default locations when path is
// empty) over the defaults and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	candidates := []string{"configs/config.yaml", "config.yaml"}
	if path != "" {
		candidates = []string{path}
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			if path != "" {
				return nil, fmt.Errorf("read config %s: %w", p, err)
			}
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", p, err)
		}
		break
	}

	ApplyEnvOverrides(cfg)
	return cfg, nil
}

// ApplyEnvOverrides overwrites fields for every environment variable that is set
func ApplyEnvOverrides(cfg *Config) {
	setString(&cfg.HTTPPort, "PORT")
	setString(&cfg.Storage, "STORAGE")
	setString(&cfg.MongoURI, "MONGO_URI")
	setString(&cfg.MongoDatabase, "MONGO_DATABASE")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.CORS.AllowedOrigins, "CORS_ALLOWED_ORIGINS")
	setString(&cfg.CORS.AllowedMethods, "CORS_ALLOWED_METHODS")
	setString(&cfg.CORS.AllowedHeaders, "CORS_ALLOWED_HEADERS")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Recognition.BaseURL, "AI_SERVICE_URL")
	setString(&cfg.WebRTC.TURNURL, "TURN_SERVER_URL")
	setString(&cfg.WebRTC.TURNUsername, "TURN_USERNAME")
	setString(&cfg.WebRTC.TURNCredential, "TURN_CREDENTIAL")

	if v := os.Getenv("REDIS_URI"); v != "" {
		switch strings.ToLower(v) {
		case "none", "off", "disabled":
			cfg.RedisAddr = ""
		default:
			// Remove redis:// prefix if present
			cfg.RedisAddr = strings.TrimPrefix(v, "redis://")
		}
	}
	if v := os.Getenv("AI_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Recognition.TimeoutMS = n
		}
	}
	if v := os.Getenv("RING_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Calls.RingTimeout = d
		}
	}
	setBool(&cfg.Calls.EndOnDisconnect, "END_ON_DISCONNECT")
	setBool(&cfg.Relay.EnforceMembership, "RELAY_ENFORCE_MEMBERSHIP")
}

// Validate reports configuration that the server cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required (JWT_SECRET)"))
	}
	if c.Storage != StorageMongo && c.Storage != StorageMemory {
		errs = append(errs, fmt.Errorf("unknown storage %q", c.Storage))
	}
	if c.Calls.RingTimeout <= 0 {
		errs = append(errs, errors.New("calls.ringTimeout must be positive"))
	}
	if c.Calls.SweepInterval <= 0 {
		errs = append(errs, errors.New("calls.sweepInterval must be positive"))
	}
	if c.Emotion.PersistThreshold < 0 || c.Emotion.PersistThreshold > 1 {
		errs = append(errs, errors.New("emotion.persistThreshold must be within [0,1]"))
	}
	for _, u := range c.WebRTC.STUNURLs {
		if _, err := stun.ParseURI(u); err != nil {
			errs = append(errs, fmt.Errorf("invalid stun url %q: %w", u, err))
		}
	}
	if c.WebRTC.TURNURL != "" {
		if _, err := stun.ParseURI(c.WebRTC.TURNURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid turn url %q: %w", c.WebRTC.TURNURL, err))
		}
		if c.WebRTC.TURNUsername == "" || c.WebRTC.TURNCredential == "" {
			errs = append(errs, errors.New("turn url requires username and credential"))
		}
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
