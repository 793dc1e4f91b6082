package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	LedgerBackendSQL    = "sql"
	LedgerBackendMongo  = "mongo"
	LedgerBackendMemory = "memory"
)

type Config struct {
	Port    string
	BaseURL string
	// CORSOrigins is empty when every origin is allowed.
	CORSOrigins []string

	DatabaseURL   string
	LedgerBackend string
	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	JWTTTL    time.Duration

	Ledger  LedgerConfig
	Payment PaymentConfig
	LLM     LLMConfig
	OAuth   OAuthConfig
	SMTP    SMTPConfig

	LogLevel string
	LogFile  string
}

type LedgerConfig struct {
	StartingGrant int64
	// ActionCosts is keyed by action type name (e.g. "subjectAnalysis").
	ActionCosts map[string]int64
}

type PaymentConfig struct {
	SuccessRate float64
	DelayMin    time.Duration
	DelayMax    time.Duration
}

type LLMConfig struct {
	Provider     string
	OpenAIKey    string
	OpenAIModel  string
	GeminiKey    string
	GeminiModel  string
	RequestLimit time.Duration
}

type OAuthConfig struct {
	GoogleClientID       string
	GoogleClientSecret   string
	FacebookClientID     string
	FacebookClientSecret string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	UseSSL   bool
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Port:          v.GetString("PORT"),
		BaseURL:       strings.TrimRight(v.GetString("BASE_URL"), "/"),
		CORSOrigins:   splitList(v.GetString("CORS_ORIGINS")),
		DatabaseURL:   v.GetString("DATABASE_URL"),
		LedgerBackend: strings.ToLower(v.GetString("LEDGER_BACKEND")),
		MongoURI:      v.GetString("MONGO_URI"),
		MongoDatabase: v.GetString("MONGO_DATABASE"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		JWTTTL:        v.GetDuration("JWT_TTL"),
		Ledger: LedgerConfig{
			StartingGrant: v.GetInt64("STARTING_GRANT"),
			ActionCosts: map[string]int64{
				"subjectAnalysis":   v.GetInt64("TOKEN_COST_SUBJECT_ANALYSIS"),
				"topicAnalysis":     v.GetInt64("TOKEN_COST_TOPIC_ANALYSIS"),
				"visualData":        v.GetInt64("TOKEN_COST_VISUAL_DATA"),
				"examValidation":    v.GetInt64("TOKEN_COST_EXAM_VALIDATION"),
				"subjectGeneration": v.GetInt64("TOKEN_COST_SUBJECT_GENERATION"),
			},
		},
		Payment: PaymentConfig{
			SuccessRate: v.GetFloat64("FAKE_PAYMENT_SUCCESS_RATE"),
			DelayMin:    v.GetDuration("PAYMENT_DELAY_MIN"),
			DelayMax:    v.GetDuration("PAYMENT_DELAY_MAX"),
		},
		LLM: LLMConfig{
			Provider:     strings.ToLower(v.GetString("LLM_PROVIDER")),
			OpenAIKey:    v.GetString("OPENAI_API_KEY"),
			OpenAIModel:  v.GetString("OPENAI_MODEL"),
			GeminiKey:    v.GetString("GEMINI_API_KEY"),
			GeminiModel:  v.GetString("GEMINI_MODEL"),
			RequestLimit: v.GetDuration("LLM_TIMEOUT"),
		},
		OAuth: OAuthConfig{
			GoogleClientID:       v.GetString("GOOGLE_CLIENT_ID"),
			GoogleClientSecret:   v.GetString("GOOGLE_CLIENT_SECRET"),
			FacebookClientID:     v.GetString("FACEBOOK_APP_ID"),
			FacebookClientSecret: v.GetString("FACEBOOK_APP_SECRET"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
			FromName: v.GetString("SMTP_FROM_NAME"),
			UseSSL:   v.GetBool("SMTP_USE_SSL"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
		LogFile:  v.GetString("LOG_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("DATABASE_URL", "file:exampattern.db")
	v.SetDefault("LEDGER_BACKEND", LedgerBackendSQL)
	v.SetDefault("MONGO_DATABASE", "exampattern")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_TTL", 24*time.Hour)

	v.SetDefault("STARTING_GRANT", 50)
	v.SetDefault("TOKEN_COST_SUBJECT_ANALYSIS", 15)
	v.SetDefault("TOKEN_COST_TOPIC_ANALYSIS", 20)
	v.SetDefault("TOKEN_COST_VISUAL_DATA", 25)
	v.SetDefault("TOKEN_COST_EXAM_VALIDATION", 10)
	v.SetDefault("TOKEN_COST_SUBJECT_GENERATION", 12)

	v.SetDefault("FAKE_PAYMENT_SUCCESS_RATE", 0.95)
	v.SetDefault("PAYMENT_DELAY_MIN", time.Second)
	v.SetDefault("PAYMENT_DELAY_MAX", 3*time.Second)

	v.SetDefault("LLM_PROVIDER", "openai")
	v.SetDefault("OPENAI_MODEL", "gpt-3.5-turbo")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("LLM_TIMEOUT", 45*time.Second)

	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM_NAME", "Exam Pattern Analyzer")

	v.SetDefault("LOG_LEVEL", "info")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
