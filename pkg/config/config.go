package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	DBDriver    string
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string

	AdminJWTSecret        string
	PushVerificationToken string

	GoogleClientID       string
	GoogleClientSecret   string
	GmailRefreshToken    string
	GmailAccount         string
	GmailWatchLabels     []string
	GoogleProjectID      string
	GooglePubSubTopic    string
	GooglePubSubSub      string
	PubSubPull           bool
	GoogleCredentials    string
	FirebaseCredentials  string
	FCMDigestTopic       string
	FCMAlertTopic        string
	OutlookClientID      string
	OutlookClientSecret  string
	OutlookTenant        string
	OutlookRefreshToken  string
	IMAPAddr             string
	IMAPUsername         string
	IMAPPassword         string
	IMAPMailbox          string
	IMAPTLS              bool
	ProvidersFile        string
	DefaultFetchCount    int
	DefaultPollInterval  time.Duration

	FetchTimeout   time.Duration
	StorageTimeout time.Duration
	CycleTimeout   time.Duration

	SweepWindow       time.Duration
	SweepBatch        int
	SweepInterval     time.Duration
	NotifyMaxAttempts int

	SubjectMatch          string
	SubjectFuzzyThreshold int
	TriggerWorkers        int
	TriggerQueueSize      int
	WatchRenewInterval    time.Duration
	SchedulerEnabled      bool
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	topic := getEnv("GOOGLE_PUBSUB_TOPIC", "")

	return &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DBDriver:    getEnv("DB_DRIVER", "postgres"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "mailsync"),
		SQLitePath:  getEnv("SQLITE_PATH", "mailsync.db"),

		AdminJWTSecret:        getEnv("ADMIN_JWT_SECRET", "your-secret-key-change-in-production"),
		PushVerificationToken: getEnv("PUSH_VERIFICATION_TOKEN", ""),

		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GmailRefreshToken:   getEnv("GMAIL_REFRESH_TOKEN", ""),
		GmailAccount:        getEnv("GMAIL_ACCOUNT", ""),
		GmailWatchLabels:    splitList(getEnv("GMAIL_WATCH_LABELS", "INBOX")),
		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:   topic,
		GooglePubSubSub:     getEnv("GOOGLE_PUBSUB_SUBSCRIPTION", topicID(topic)+"-sub"),
		PubSubPull:          getEnv("PUBSUB_PULL", "false") == "true",
		GoogleCredentials:   getEnv("GOOGLE_CREDENTIALS", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		FCMDigestTopic:      getEnv("FCM_DIGEST_TOPIC", "mail-digest"),
		FCMAlertTopic:       getEnv("FCM_ALERT_TOPIC", "mail-alerts"),
		OutlookClientID:     getEnv("OUTLOOK_CLIENT_ID", ""),
		OutlookClientSecret: getEnv("OUTLOOK_CLIENT_SECRET", ""),
		OutlookTenant:       getEnv("OUTLOOK_TENANT", "common"),
		OutlookRefreshToken: getEnv("OUTLOOK_REFRESH_TOKEN", ""),
		IMAPAddr:            getEnv("IMAP_ADDR", ""),
		IMAPUsername:        getEnv("IMAP_USERNAME", ""),
		IMAPPassword:        getEnv("IMAP_PASSWORD", ""),
		IMAPMailbox:         getEnv("IMAP_MAILBOX", "INBOX"),
		IMAPTLS:             getEnv("IMAP_TLS", "true") != "false",
		ProvidersFile:       getEnv("PROVIDERS_FILE", ""),
		DefaultFetchCount:   getInt("FETCH_COUNT", 20),
		DefaultPollInterval: getDuration("POLL_INTERVAL", 5*time.Minute),

		FetchTimeout:   getDuration("FETCH_TIMEOUT", 20*time.Second),
		StorageTimeout: getDuration("STORAGE_TIMEOUT", 10*time.Second),
		CycleTimeout:   getDuration("CYCLE_TIMEOUT", 2*time.Minute),

		SweepWindow:       getDuration("SWEEP_WINDOW", 24*time.Hour),
		SweepBatch:        getInt("SWEEP_BATCH", 50),
		SweepInterval:     getDuration("SWEEP_INTERVAL", 5*time.Minute),
		NotifyMaxAttempts: getInt("NOTIFY_MAX_ATTEMPTS", 5),

		SubjectMatch:          getEnv("SUBJECT_MATCH", "strict"),
		SubjectFuzzyThreshold: getInt("SUBJECT_FUZZY_THRESHOLD", 2),
		TriggerWorkers:        getInt("TRIGGER_WORKERS", 2),
		TriggerQueueSize:      getInt("TRIGGER_QUEUE_SIZE", 100),
		WatchRenewInterval:    getDuration("WATCH_RENEW_INTERVAL", 12*time.Hour),
		SchedulerEnabled:      getEnv("SCHEDULER_ENABLED", "true") != "false",
	}
}

// GmailWatchTopic returns the fully qualified topic name users.watch expects.
func (c *Config) GmailWatchTopic() string {
	if c.GooglePubSubTopic == "" || strings.HasPrefix(c.GooglePubSubTopic, "projects/") {
		return c.GooglePubSubTopic
	}
	if c.GoogleProjectID == "" {
		return ""
	}
	return "projects/" + c.GoogleProjectID + "/topics/" + c.GooglePubSubTopic
}

// PubSubTopicID returns the short topic name the Pub/Sub client expects.
func (c *Config) PubSubTopicID() string {
	return topicID(c.GooglePubSubTopic)
}

func topicID(topic string) string {
	if parts := strings.Split(topic, "/"); len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return topic
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
