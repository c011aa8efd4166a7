package conf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/usecase"
)

const envPrefix = "RELAY"

// Config represents application configuration
type Config struct {
	Lark        LarkConfig        `mapstructure:"lark"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
	Decision    DecisionConfig    `mapstructure:"decision"`
	Translation TranslationConfig `mapstructure:"translation"`
	Store       StoreConfig       `mapstructure:"store"`
	Dispatcher  DispatcherConfig  `mapstructure:"dispatcher"`
	Review      ReviewConfig      `mapstructure:"review"`
	Directory   DirectoryConfig   `mapstructure:"directory"`
	AWS         AWSConfig         `mapstructure:"aws"`
	Secrets     SecretsConfig     `mapstructure:"secrets"`
	Log         LogConfig         `mapstructure:"log"`
	PromptsPath string            `mapstructure:"prompts_path"`

	// Prompts is loaded from PromptsPath (or defaults) by Load
	Prompts *PromptsConfig `mapstructure:"-"`
}

// LarkConfig contains the two sending identities and the operator
type LarkConfig struct {
	HumanAppID         string `mapstructure:"human_app_id"`
	HumanAppSecret     string `mapstructure:"human_app_secret"`
	BroadcastAppID     string `mapstructure:"broadcast_app_id"`
	BroadcastAppSecret string `mapstructure:"broadcast_app_secret"`
	// BroadcastOpenID overrides the broadcast app's open_id lookup
	BroadcastOpenID string `mapstructure:"broadcast_open_id"`
	OperatorChatID  string `mapstructure:"operator_chat_id"`
	OperatorUserID  string `mapstructure:"operator_user_id"`
	BotName         string `mapstructure:"bot_name"`
}

// OpenAIConfig contains LLM provider configuration
type OpenAIConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	FastModel string        `mapstructure:"fast_model"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DecisionConfig contains decision engine thresholds
type DecisionConfig struct {
	AutoReplyEnabled         bool     `mapstructure:"auto_reply_enabled"`
	AutoSendThreshold        int      `mapstructure:"auto_send_threshold"`
	QueueThreshold           int      `mapstructure:"queue_threshold"`
	VeryHighConfidence       int      `mapstructure:"very_high_confidence"`
	GroupAddressedConfidence int      `mapstructure:"group_addressed_confidence"`
	GroupCriticalConfidence  int      `mapstructure:"group_critical_confidence"`
	AlwaysQueueTypes         []string `mapstructure:"always_queue_types"`
	SafeAutoSendTypes        []string `mapstructure:"safe_auto_send_types"`
}

// TranslationConfig contains translation configuration
type TranslationConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	GroupLanguages   []string `mapstructure:"group_languages"`
	OperatorLanguage string   `mapstructure:"operator_language"`
}

// StoreConfig contains store configuration
type StoreConfig struct {
	Path        string        `mapstructure:"path"`
	LockRetries int           `mapstructure:"lock_retries"`
	LockBackoff time.Duration `mapstructure:"lock_backoff"`
}

// DispatcherConfig contains dispatcher configuration
type DispatcherConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// ReviewConfig contains review surface configuration
type ReviewConfig struct {
	Addr         string `mapstructure:"addr"`
	DashboardURL string `mapstructure:"dashboard_url"`
	// ApprovalMaxAge auto-skips older approvals; 0 disables expiry
	ApprovalMaxAge  time.Duration `mapstructure:"approval_max_age"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	MarkerRetention time.Duration `mapstructure:"marker_retention"`
}

// DirectoryConfig selects the business directory backend
type DirectoryConfig struct {
	Backend       string `mapstructure:"backend"`
	DynamoDBTable string `mapstructure:"dynamodb_table"`
	SeedFile      string `mapstructure:"seed_file"`
}

// AWSConfig contains AWS configuration
type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// SecretsConfig enables the SSM secret overlay
type SecretsConfig struct {
	SSMPrefix string `mapstructure:"ssm_prefix"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("lark.bot_name", "")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.fast_model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", 30*time.Second)

	d := usecase.DefaultDecisionConfig()
	v.SetDefault("decision.auto_reply_enabled", d.AutoReplyEnabled)
	v.SetDefault("decision.auto_send_threshold", d.AutoSendThreshold)
	v.SetDefault("decision.queue_threshold", d.QueueThreshold)
	v.SetDefault("decision.very_high_confidence", d.VeryHighConfidence)
	v.SetDefault("decision.group_addressed_confidence", d.GroupAddressedConfidence)
	v.SetDefault("decision.group_critical_confidence", d.GroupCriticalConfidence)
	v.SetDefault("decision.always_queue_types", typeNames(d.AlwaysQueueTypes))
	v.SetDefault("decision.safe_auto_send_types", typeNames(d.SafeAutoSendTypes))

	v.SetDefault("translation.enabled", true)
	v.SetDefault("translation.group_languages", []string{"pl", "de"})
	v.SetDefault("translation.operator_language", "en")

	v.SetDefault("store.path", "data/relay.db")
	v.SetDefault("store.lock_retries", 15)
	v.SetDefault("store.lock_backoff", 100*time.Millisecond)

	v.SetDefault("dispatcher.poll_interval", time.Second)
	v.SetDefault("dispatcher.error_backoff", 2*time.Second)
	v.SetDefault("dispatcher.max_attempts", 1)
	v.SetDefault("dispatcher.retry_backoff", 30*time.Second)

	v.SetDefault("review.addr", ":5000")
	v.SetDefault("review.dashboard_url", "http://localhost:5000")
	v.SetDefault("review.approval_max_age", time.Duration(0))
	v.SetDefault("review.sweep_interval", time.Minute)
	v.SetDefault("review.marker_retention", 7*24*time.Hour)

	v.SetDefault("directory.backend", "sqlite")
	v.SetDefault("directory.dynamodb_table", "")
	v.SetDefault("directory.seed_file", "")

	v.SetDefault("aws.region", "")
	v.SetDefault("secrets.ssm_prefix", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("prompts_path", "")

	for _, k := range []string{
		"lark.human_app_id", "lark.human_app_secret", "lark.broadcast_app_id", "lark.broadcast_app_secret",
		"lark.broadcast_open_id", "lark.operator_chat_id", "lark.operator_user_id",
		"openai.api_key", "openai.base_url",
	} {
		v.SetDefault(k, "")
	}
}

func typeNames(m map[domain.MessageType]bool) []string {
	var out []string
	for _, t := range domain.MessageTypes(true) {
		if m[t] {
			out = append(out, string(t))
		}
	}
	return out
}

// Load reads .env (if present), the optional config file and the
// environment. Environment keys are RELAY_<SECTION>_<KEY>.
func Load(configFile string) (*Config, error) {
	// A missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Conventional provider variable names
	_ = v.BindEnv("openai.api_key", envPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("aws.region", envPrefix+"_AWS_REGION", "AWS_REGION")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("relay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Translation.GroupLanguages = splitList(cfg.Translation.GroupLanguages)
	cfg.Decision.AlwaysQueueTypes = splitList(cfg.Decision.AlwaysQueueTypes)
	cfg.Decision.SafeAutoSendTypes = splitList(cfg.Decision.SafeAutoSendTypes)

	prompts, _, err := LoadPromptsConfig(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}
	cfg.Prompts = prompts
	return &cfg, nil
}

// splitList normalises list values that may arrive as one comma-separated string
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, strings.ToLower(p))
			}
		}
	}
	return out
}

// SecretGetter fetches a named secret
type SecretGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Secret parameter names under secrets.ssm_prefix
const (
	SecretOpenAIKey          = "openai-api-key"
	SecretHumanAppSecret     = "lark-human-app-secret"
	SecretBroadcastAppSecret = "lark-broadcast-app-secret"
)

// ApplySecrets overrides credentials with values from the secret store.
// Missing parameters keep the environment value.
func (c *Config) ApplySecrets(ctx context.Context, getter SecretGetter) error {
	targets := map[string]*string{
		SecretOpenAIKey:          &c.OpenAI.APIKey,
		SecretHumanAppSecret:     &c.Lark.HumanAppSecret,
		SecretBroadcastAppSecret: &c.Lark.BroadcastAppSecret,
	}
	var errs []error
	for name, dst := range targets {
		v, err := getter.GetParameter(ctx, name)
		if err != nil {
			if *dst == "" {
				errs = append(errs, err)
			}
			continue
		}
		*dst = v
	}
	return errors.Join(errs...)
}

// ToDecisionConfig converts to the decision engine configuration
func (c *Config) ToDecisionConfig() usecase.DecisionConfig {
	toSet := func(names []string) map[domain.MessageType]bool {
		m := make(map[domain.MessageType]bool, len(names))
		for _, n := range names {
			m[domain.MessageType(n)] = true
		}
		return m
	}
	return usecase.DecisionConfig{
		AutoReplyEnabled:         c.Decision.AutoReplyEnabled,
		AutoSendThreshold:        c.Decision.AutoSendThreshold,
		QueueThreshold:           c.Decision.QueueThreshold,
		VeryHighConfidence:       c.Decision.VeryHighConfidence,
		GroupAddressedConfidence: c.Decision.GroupAddressedConfidence,
		GroupCriticalConfidence:  c.Decision.GroupCriticalConfidence,
		AlwaysQueueTypes:         toSet(c.Decision.AlwaysQueueTypes),
		SafeAutoSendTypes:        toSet(c.Decision.SafeAutoSendTypes),
	}
}

// ToDispatchConfig converts to the dispatch configuration
func (c *Config) ToDispatchConfig() usecase.DispatchConfig {
	d := usecase.DefaultDispatchConfig()
	d.MaxAttempts = c.Dispatcher.MaxAttempts
	d.RetryBackoff = c.Dispatcher.RetryBackoff
	return d
}

// ToBroadcastConfig converts to the translation broadcast configuration
func (c *Config) ToBroadcastConfig() usecase.BroadcastConfig {
	return usecase.BroadcastConfig{
		Enabled:   c.Translation.Enabled,
		Languages: c.Translation.GroupLanguages,
	}
}

// Validate validates settings shared by all processes
func (c *Config) Validate() error {
	for field, v := range map[string]int{
		"decision.auto_send_threshold":        c.Decision.AutoSendThreshold,
		"decision.queue_threshold":            c.Decision.QueueThreshold,
		"decision.very_high_confidence":       c.Decision.VeryHighConfidence,
		"decision.group_addressed_confidence": c.Decision.GroupAddressedConfidence,
		"decision.group_critical_confidence":  c.Decision.GroupCriticalConfidence,
	} {
		if v < 0 || v > 100 {
			return &ConfigError{Field: field, Message: "must be between 0 and 100"}
		}
	}
	if c.Decision.QueueThreshold > c.Decision.AutoSendThreshold {
		return &ConfigError{Field: "decision.queue_threshold", Message: "must not exceed auto_send_threshold"}
	}
	for _, t := range append(append([]string{}, c.Decision.AlwaysQueueTypes...), c.Decision.SafeAutoSendTypes...) {
		if _, ok := domain.ParseMessageType(t, true); !ok {
			return &ConfigError{Field: "decision", Message: fmt.Sprintf("unknown message type %q", t)}
		}
	}
	for _, code := range c.Translation.GroupLanguages {
		if _, ok := domain.LookupLanguage(code); !ok {
			return &ConfigError{Field: "translation.group_languages", Message: fmt.Sprintf("unknown language %q", code)}
		}
	}
	if _, ok := domain.LookupLanguage(c.Translation.OperatorLanguage); !ok {
		return &ConfigError{Field: "translation.operator_language", Message: fmt.Sprintf("unknown language %q", c.Translation.OperatorLanguage)}
	}
	switch c.Directory.Backend {
	case "sqlite":
	case "dynamodb":
		if c.Directory.DynamoDBTable == "" {
			return &ConfigError{Field: "directory.dynamodb_table", Message: "required for the dynamodb backend"}
		}
	default:
		return &ConfigError{Field: "directory.backend", Message: fmt.Sprintf("unknown backend %q", c.Directory.Backend)}
	}
	if c.Dispatcher.MaxAttempts < 1 {
		return &ConfigError{Field: "dispatcher.max_attempts", Message: "must be at least 1"}
	}
	if c.Store.Path == "" {
		return &ConfigError{Field: "store.path", Message: "required"}
	}
	return nil
}

// ValidateListener checks what the listener process needs
func (c *Config) ValidateListener() error {
	if c.Lark.HumanAppID == "" || c.Lark.HumanAppSecret == "" {
		return &ConfigError{Field: "lark.human_app_id/lark.human_app_secret", Message: "required"}
	}
	if c.Lark.OperatorChatID == "" {
		return &ConfigError{Field: "lark.operator_chat_id", Message: "required"}
	}
	if c.OpenAI.APIKey == "" {
		return &ConfigError{Field: "openai.api_key", Message: "required"}
	}
	return nil
}

// ValidateDispatcher checks what the dispatcher process needs
func (c *Config) ValidateDispatcher() error {
	if c.Lark.HumanAppID == "" || c.Lark.HumanAppSecret == "" {
		return &ConfigError{Field: "lark.human_app_id/lark.human_app_secret", Message: "required"}
	}
	if c.Lark.BroadcastAppID == "" || c.Lark.BroadcastAppSecret == "" {
		return &ConfigError{Field: "lark.broadcast_app_id/lark.broadcast_app_secret", Message: "required"}
	}
	// Approved group replies are broadcast-translated from the dispatcher
	if c.Translation.Enabled && c.OpenAI.APIKey == "" {
		return &ConfigError{Field: "openai.api_key", Message: "required when translation is enabled"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
