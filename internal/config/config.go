package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "Asia/Kolkata"
	configPathEnv    = "NEWS_DIGEST_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	redisAddrEnv     = "REDIS_ADDR"
	classifierKeyEnv = "CLASSIFIER_API_KEY"
	hfTokenEnv       = "HF_TOKEN"
	classifierModel  = "CLASSIFIER_MODEL"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
	agentSecretEnv   = "AGENT_SECRET_KEY"
	publicURLEnv     = "BACKEND_URL"
	httpAddrEnv      = "HTTP_ADDR"
	logLevelEnv      = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Server        ServerConfig       `yaml:"server"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Classifier    ClassifierConfig   `yaml:"classifier"`
	Profile       ProfileConfig      `yaml:"profile"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Search        SearchConfig       `yaml:"search"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN
// selects the in-memory store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig configures the single-flight run lock.
type RedisConfig struct {
	Addr    string        `yaml:"addr"`
	LockKey string        `yaml:"lockKey"`
	LockTTL time.Duration `yaml:"lockTTL"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	AgentSecret string `yaml:"agentSecret"`
	PublicURL   string `yaml:"publicUrl"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	RunTimes []string       `yaml:"runTimes"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ClassifierConfig defines how to contact the OpenAI-compatible classification API.
type ClassifierConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"apiKey"`
	SystemPrompt string        `yaml:"systemPrompt"`
	MaxTokens    int           `yaml:"maxTokens"`
	Temperature  float64       `yaml:"temperature"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Enabled reports whether the primary validation path can be used.
func (c ClassifierConfig) Enabled() bool {
	return c.APIKey != "" && c.Endpoint != "" && c.Model != ""
}

// ProfileConfig is the static description of the reader the digest is built for.
type ProfileConfig struct {
	Description string `yaml:"description"`
}

// PipelineConfig carries the tunable constants of every pipeline stage.
type PipelineConfig struct {
	LookbackWindow           time.Duration `yaml:"lookbackWindow"`
	MaxBatch                 int           `yaml:"maxBatch"`
	ValidationConcurrency    int           `yaml:"validationConcurrency"`
	CorroborationConcurrency int           `yaml:"corroborationConcurrency"`
	CorroborationResults     int           `yaml:"corroborationResults"`
	VerificationThreshold    int           `yaml:"verificationThreshold"`
	CorroborationBonus       int           `yaml:"corroborationBonus"`
	MaxDigestItems           int           `yaml:"maxDigestItems"`
	MessageLimit             int           `yaml:"messageLimit"`
	CommandCooldown          time.Duration `yaml:"commandCooldown"`
	RunTimeout               time.Duration `yaml:"runTimeout"`
}

// SearchConfig configures the corroboration news-search surface.
type SearchConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Language string        `yaml:"language"`
	Region   string        `yaml:"region"`
	Timeout  time.Duration `yaml:"timeout"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Configured reports whether the outbound channel can deliver anything.
func (t TelegramConfig) Configured() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// SiteConfig describes a single upstream site with its scanner strategy.
type SiteConfig struct {
	Name       string            `yaml:"name"`
	Scanner    string            `yaml:"scanner"`
	Domain     string            `yaml:"domain"`
	Category   string            `yaml:"category"`
	SourceKind string            `yaml:"sourceKind"`
	Limit      int               `yaml:"limit"`
	Feeds      []FeedConfig      `yaml:"feeds"`
	Options    map[string]string `yaml:"options"`
}

// FeedConfig holds one concrete endpoint to fetch.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultSites()
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Addr = v
	}

	if v := os.Getenv(hfTokenEnv); v != "" {
		c.Classifier.APIKey = v
	}
	if v := os.Getenv(classifierKeyEnv); v != "" {
		c.Classifier.APIKey = v
	}
	if v := os.Getenv(classifierModel); v != "" {
		c.Classifier.Model = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(agentSecretEnv); v != "" {
		c.Server.AgentSecret = v
	}
	if v := os.Getenv(publicURLEnv); v != "" {
		c.Server.PublicURL = v
	}
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.Server.Addr = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to UTC", tz)
		loc = time.UTC
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Redis.Addr != "" {
		base.Redis.Addr = override.Redis.Addr
	}
	if override.Redis.LockKey != "" {
		base.Redis.LockKey = override.Redis.LockKey
	}
	if override.Redis.LockTTL > 0 {
		base.Redis.LockTTL = override.Redis.LockTTL
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.AgentSecret != "" {
		base.Server.AgentSecret = override.Server.AgentSecret
	}
	if override.Server.PublicURL != "" {
		base.Server.PublicURL = override.Server.PublicURL
	}

	if len(override.Scheduler.RunTimes) > 0 {
		base.Scheduler.RunTimes = override.Scheduler.RunTimes
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	base.Classifier = mergeClassifier(base.Classifier, override.Classifier)

	if override.Profile.Description != "" {
		base.Profile = override.Profile
	}

	base.Pipeline = mergePipeline(base.Pipeline, override.Pipeline)

	if override.Search.Endpoint != "" {
		base.Search.Endpoint = override.Search.Endpoint
	}
	if override.Search.Language != "" {
		base.Search.Language = override.Search.Language
	}
	if override.Search.Region != "" {
		base.Search.Region = override.Search.Region
	}
	if override.Search.Timeout > 0 {
		base.Search.Timeout = override.Search.Timeout
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

func mergeClassifier(base, override ClassifierConfig) ClassifierConfig {
	if override.Endpoint != "" {
		base.Endpoint = override.Endpoint
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.APIKey != "" {
		base.APIKey = override.APIKey
	}
	if override.SystemPrompt != "" {
		base.SystemPrompt = override.SystemPrompt
	}
	if override.MaxTokens > 0 {
		base.MaxTokens = override.MaxTokens
	}
	if override.Temperature > 0 {
		base.Temperature = override.Temperature
	}
	if override.Timeout > 0 {
		base.Timeout = override.Timeout
	}
	return base
}

func mergePipeline(base, override PipelineConfig) PipelineConfig {
	if override.LookbackWindow > 0 {
		base.LookbackWindow = override.LookbackWindow
	}
	if override.MaxBatch > 0 {
		base.MaxBatch = override.MaxBatch
	}
	if override.ValidationConcurrency > 0 {
		base.ValidationConcurrency = override.ValidationConcurrency
	}
	if override.CorroborationConcurrency > 0 {
		base.CorroborationConcurrency = override.CorroborationConcurrency
	}
	if override.CorroborationResults > 0 {
		base.CorroborationResults = override.CorroborationResults
	}
	if override.VerificationThreshold > 0 {
		base.VerificationThreshold = override.VerificationThreshold
	}
	if override.CorroborationBonus > 0 {
		base.CorroborationBonus = override.CorroborationBonus
	}
	if override.MaxDigestItems > 0 {
		base.MaxDigestItems = override.MaxDigestItems
	}
	if override.MessageLimit > 0 {
		base.MessageLimit = override.MessageLimit
	}
	if override.CommandCooldown > 0 {
		base.CommandCooldown = override.CommandCooldown
	}
	if override.RunTimeout > 0 {
		base.RunTimeout = override.RunTimeout
	}
	return base
}

func defaultConfig() Config {
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		loc = time.UTC
	}
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{DSN: ""},
		Redis:    RedisConfig{Addr: "", LockKey: "newsdigest:run-lock", LockTTL: 15 * time.Minute},
		Server:   ServerConfig{Addr: "0.0.0.0:8080"},
		Scheduler: SchedulerConfig{
			RunTimes: []string{"09:00", "18:00"},
			Timezone: defaultTimezone,
			location: loc,
		},
		Classifier: ClassifierConfig{
			Endpoint:     "https://router.huggingface.co/v1/chat/completions",
			Model:        "meta-llama/Llama-3.3-70B-Instruct",
			SystemPrompt: "You are a credibility analyser. Always respond with valid JSON only, no other text.",
			MaxTokens:    350,
			Temperature:  0.1,
			Timeout:      40 * time.Second,
		},
		Profile: ProfileConfig{Description: defaultProfile},
		Pipeline: PipelineConfig{
			LookbackWindow:           7 * 24 * time.Hour,
			MaxBatch:                 50,
			ValidationConcurrency:    5,
			CorroborationConcurrency: 5,
			CorroborationResults:     15,
			VerificationThreshold:    2,
			CorroborationBonus:       15,
			MaxDigestItems:           15,
			MessageLimit:             3800,
			CommandCooldown:          3 * time.Second,
			RunTimeout:               10 * time.Minute,
		},
		Search: SearchConfig{
			Endpoint: "https://news.google.com/rss/search",
			Language: "en-IN",
			Region:   "IN",
			Timeout:  15 * time.Second,
		},
		Sites: defaultSites(),
	}
}

const defaultProfile = "30-year-old Data Scientist in Hyderabad (Madhapur). " +
	"PRIMARY FOCUS: UPI cashback offers, credit card rewards/cashback (HDFC, ICICI, Axis, Amex, SBI, RuPay), " +
	"new card offers, banking schemes, EMI deals for lifestyle spends (food delivery, travel, dining, entertainment). " +
	"Also interested in: Data Science/MLE/Agentic AI/LLM career news, " +
	"income tax saving, Telangana/Hyderabad govt schemes, travel policies. " +
	"Goal: maximise cashback/rewards, find actionable card/UPI offers, grow AI/DS career."

func rssSite(name, domain, category, kind string, limit int, urls ...string) SiteConfig {
	feeds := make([]FeedConfig, 0, len(urls))
	for _, u := range urls {
		feeds = append(feeds, FeedConfig{Name: name, URL: u})
	}
	return SiteConfig{
		Name:       name,
		Scanner:    "rss",
		Domain:     domain,
		Category:   category,
		SourceKind: kind,
		Limit:      limit,
		Feeds:      feeds,
	}
}

func defaultSites() []SiteConfig {
	return []SiteConfig{
		rssSite("economictimes", "economictimes.com", "finance", "news", 10,
			"https://economictimes.indiatimes.com/rssfeedsdefault.cms",
			"https://economictimes.indiatimes.com/wealth/rss"),
		rssSite("moneycontrol", "moneycontrol.com", "finance", "news", 10, "https://www.moneycontrol.com/rss/business.xml"),
		rssSite("livemint", "livemint.com", "finance", "news", 10, "https://www.livemint.com/rss/money"),
		rssSite("ndtvprofit", "ndtv.com", "finance", "news", 10, "https://feeds.feedburner.com/ndtvprofit-latest"),
		rssSite("bankbazaar", "bankbazaar.com", "finance", "news", 8, "https://www.bankbazaar.com/rss.xml"),
		rssSite("arxiv", "arxiv.org", "tech", "research", 10, "https://arxiv.org/rss/cs.AI"),
		rssSite("huggingface", "huggingface.co", "tech", "official", 10, "https://huggingface.co/blog/feed.xml"),
		rssSite("techcrunch", "techcrunch.com", "tech", "news", 8, "https://techcrunch.com/feed/"),
		rssSite("venturebeat", "venturebeat.com", "tech", "news", 8, "https://venturebeat.com/feed/"),
		{
			Name:       "hackernews",
			Scanner:    "hackernews",
			Domain:     "news.ycombinator.com",
			Category:   "tech",
			SourceKind: "community",
			Limit:      10,
			Feeds:      []FeedConfig{{Name: "topstories", URL: "https://hacker-news.firebaseio.com/v0"}},
		},
		rssSite("pib", "pib.gov.in", "govt", "official", 10, "https://pib.gov.in/RssMain.aspx?ModId=6&Lang=1&Regid=3"),
		rssSite("thehindu", "thehindu.com", "govt", "news", 10, "https://www.thehindu.com/news/national/feeder/default.rss"),
		rssSite("indianexpress", "indianexpress.com", "govt", "news", 10, "https://indianexpress.com/section/india/feed/"),
	}
}
