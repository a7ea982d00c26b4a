package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Application identity used for file and environment lookup.
const (
	AppName         = "blueprint"
	EnvPrefix       = "BLUEPRINT_"
	LocalConfigName = ".blueprint.yaml"
)

// ErrInvalid wraps every settings validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Defaults returns the built-in value of every known key.
func Defaults() map[string]string {
	return map[string]string{
		"llm_provider":                    "openai",
		"openai_api_key":                  "",
		"openai_base_url":                 "https://api.openai.com/v1",
		"openai_model":                    "gpt-4o",
		"openai_fast_model":               "gpt-4o-mini",
		"claude_model":                    "",
		"llm_timeout":                     "60s",
		"prompts_dir":                     "",
		"llm_requests_per_minute":         "0",
		"store":                           "mongo",
		"mongodb_uri":                     "",
		"mongodb_database":                "Raina",
		"fixtures_dir":                    "fixtures",
		"plantuml_server_url":             "",
		"plantuml_jar":                    "",
		"rabbitmq_url":                    "",
		"rabbitmq_host":                   "",
		"rabbitmq_exchange":               "mphai.raina.exchange",
		"rabbitmq_exchange_type":          "topic",
		"rabbitmq_routing_key":            "iba.artifacts.ready",
		"rabbitmq_routing_key_iba_stream": "iba.artifact.generated",
		"webhook_url":                     "",
		"webhook_secret":                  "",
		"slack_webhook_url":               "",
		"event_queue_size":                "256",
		"output_dir":                      "output",
		"runs_dir":                        ".blueprint",
		"runs_db":                         ".blueprint/runs.db",
		"retention_days":                  "30",
		"pdf_enabled":                     "true",
		"wkhtmltopdf_path":                "wkhtmltopdf",
		"max_per_chunk":                   "3",
		"max_items":                       "8",
		"adr_chunking":                    "per_type",
		"chunk_concurrency":               "1",
		"http_addr":                       ":8000",
		"jwt_secret":                      "",
		"api_key_hash":                    "",
		"publish_provider":                "none",
		"github_token":                    "",
		"github_repo":                     "",
		"gitlab_token":                    "",
		"gitlab_url":                      "https://gitlab.com",
		"gitlab_project":                  "",
		"jira_url":                        "",
		"jira_email":                      "",
		"jira_token":                      "",
		"jira_project":                    "",
		"jira_issue_type":                 "Task",
		"log_level":                       "info",
		"log_format":                      "text",
	}
}

// Keys returns every known key, sorted.
func Keys() []string {
	defaults := Defaults()
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// envAliases are the unprefixed variable names deployments already use.
var envAliases = map[string][]string{
	"openai_api_key":                  {"OPENAI_API_KEY"},
	"openai_base_url":                 {"OPENAI_BASE_URL"},
	"openai_model":                    {"OPENAI_MODEL"},
	"mongodb_uri":                     {"MONGODB_URI"},
	"plantuml_server_url":             {"PLANTUML_SERVER_URL"},
	"plantuml_jar":                    {"PLANTUML_JAR_PATH"},
	"rabbitmq_url":                    {"RABBITMQ_URL"},
	"rabbitmq_host":                   {"RABBITMQ_HOST"},
	"rabbitmq_exchange":               {"RABBITMQ_EXCHANGE"},
	"rabbitmq_exchange_type":          {"RABBITMQ_EXCHANGE_TYPE"},
	"rabbitmq_routing_key":            {"RABBITMQ_ROUTING_KEY"},
	"rabbitmq_routing_key_iba_stream": {"RABBITMQ_ROUTING_KEY_IBA_STREAM"},
	"slack_webhook_url":               {"SLACK_WEBHOOK_URL"},
	"github_token":                    {"GITHUB_TOKEN", "GH_TOKEN"},
	"gitlab_token":                    {"GITLAB_TOKEN"},
	"jira_token":                      {"JIRA_API_TOKEN"},
}

// NewStandardResolver returns the resolver for blueprint settings:
// defaults, ~/.config/blueprint/config.yaml, .blueprint.yaml at the git
// root, then environment variables.
func NewStandardResolver() *Resolver {
	return NewResolver(StandardResolverConfig())
}

// StandardResolverConfig returns the configuration used by
// NewStandardResolver.
func StandardResolverConfig() ResolverConfig {
	return ResolverConfig{
		EnvPrefix:       EnvPrefix,
		EnvAliases:      envAliases,
		GlobalConfigDir: AppName,
		LocalConfigName: LocalConfigName,
		Defaults:        Defaults(),
		ValidKeys:       Keys(),
	}
}

// LoadDotEnv loads variables from the given files, or ".env" when none are
// given. Missing files are skipped and existing variables are never
// overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if isNotExist(err) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// =============================================================================
// Settings
// =============================================================================

// LLMSettings selects and configures the text generation provider.
type LLMSettings struct {
	Provider  string // openai or claude
	APIKey    string
	BaseURL   string
	Model     string
	FastModel string
	// ClaudeModel overrides per-task model selection for the claude provider.
	ClaudeModel string
	Timeout     time.Duration
	// RequestsPerMinute throttles text-generation calls; zero is unlimited.
	RequestsPerMinute int
	// PromptsDir overrides prompt templates ahead of the project's
	// .blueprint/prompts and prompts directories.
	PromptsDir string
}

// StoreSettings selects the artifact store.
type StoreSettings struct {
	Kind        string // mongo or file
	MongoURI    string
	Database    string
	FixturesDir string
}

// PlantUMLSettings configures diagram image references.
type PlantUMLSettings struct {
	ServerURL string
	// JarPath, when set, renders PNG files locally instead of linking to
	// the server.
	JarPath string
}

// EventSettings configures lifecycle event delivery.
type EventSettings struct {
	AMQPURL      string
	Exchange     string
	ExchangeType string
	ReadyKey     string
	StreamKey    string
	WebhookURL   string
	// WebhookSecret signs webhook bodies when set.
	WebhookSecret string
	SlackURL      string
	QueueSize     int
}

// OutputSettings configures documents, snapshots and run history.
type OutputSettings struct {
	Dir           string
	PDF           bool
	WKHTMLToPDF   string
	RunsDir       string
	RunsDB        string
	RetentionDays int
}

// ChunkSettings configures artifact grouping for oracle calls.
type ChunkSettings struct {
	MaxPerChunk int
	MaxItems    int
	ADRPolicy   string
	Concurrency int
}

// ServerSettings configures the HTTP surface.
type ServerSettings struct {
	Addr       string
	JWTSecret  string
	APIKeyHash string
}

// PublishSettings configures optional publication of blueprints as issues.
type PublishSettings struct {
	Provider      string // none, github, gitlab or jira
	GitHubToken   string
	GitHubRepo    string // owner/name
	GitLabToken   string
	GitLabURL     string
	GitLabProject string
	JiraURL       string
	JiraEmail     string
	JiraToken     string
	JiraProject   string
	JiraIssueType string
}

// LogSettings configures the process logger.
type LogSettings struct {
	Level  string
	Format string // text or json
}

// Settings is the typed, validated configuration of a blueprint process.
type Settings struct {
	LLM      LLMSettings
	Store    StoreSettings
	PlantUML PlantUMLSettings
	Events   EventSettings
	Output   OutputSettings
	Chunk    ChunkSettings
	Server   ServerSettings
	Publish  PublishSettings
	Log      LogSettings
}

// Load converts resolved values into Settings and validates them.
func Load(r *Resolved) (*Settings, error) {
	p := parser{r: r}
	s := &Settings{
		LLM: LLMSettings{
			Provider:          strings.ToLower(r.Get("llm_provider")),
			APIKey:            r.Get("openai_api_key"),
			BaseURL:           r.Get("openai_base_url"),
			Model:             r.Get("openai_model"),
			FastModel:         r.Get("openai_fast_model"),
			ClaudeModel:       r.Get("claude_model"),
			Timeout:           p.duration("llm_timeout"),
			PromptsDir:        r.Get("prompts_dir"),
			RequestsPerMinute: p.integer("llm_requests_per_minute"),
		},
		Store: StoreSettings{
			Kind:        strings.ToLower(r.Get("store")),
			MongoURI:    r.Get("mongodb_uri"),
			Database:    r.Get("mongodb_database"),
			FixturesDir: r.Get("fixtures_dir"),
		},
		PlantUML: PlantUMLSettings{
			ServerURL: strings.TrimRight(r.Get("plantuml_server_url"), "/"),
			JarPath:   r.Get("plantuml_jar"),
		},
		Events: EventSettings{
			AMQPURL:       amqpURL(r.Get("rabbitmq_url"), r.Get("rabbitmq_host")),
			Exchange:      r.Get("rabbitmq_exchange"),
			ExchangeType:  r.Get("rabbitmq_exchange_type"),
			ReadyKey:      r.Get("rabbitmq_routing_key"),
			StreamKey:     r.Get("rabbitmq_routing_key_iba_stream"),
			WebhookURL:    r.Get("webhook_url"),
			WebhookSecret: r.Get("webhook_secret"),
			SlackURL:      r.Get("slack_webhook_url"),
			QueueSize:     p.integer("event_queue_size"),
		},
		Output: OutputSettings{
			Dir:           r.Get("output_dir"),
			PDF:           p.boolean("pdf_enabled"),
			WKHTMLToPDF:   r.Get("wkhtmltopdf_path"),
			RunsDir:       r.Get("runs_dir"),
			RunsDB:        r.Get("runs_db"),
			RetentionDays: p.integer("retention_days"),
		},
		Chunk: ChunkSettings{
			MaxPerChunk: p.integer("max_per_chunk"),
			MaxItems:    p.integer("max_items"),
			ADRPolicy:   r.Get("adr_chunking"),
			Concurrency: p.integer("chunk_concurrency"),
		},
		Server: ServerSettings{
			Addr:       r.Get("http_addr"),
			JWTSecret:  r.Get("jwt_secret"),
			APIKeyHash: r.Get("api_key_hash"),
		},
		Publish: PublishSettings{
			Provider:      strings.ToLower(r.Get("publish_provider")),
			GitHubToken:   r.Get("github_token"),
			GitHubRepo:    r.Get("github_repo"),
			GitLabToken:   r.Get("gitlab_token"),
			GitLabURL:     r.Get("gitlab_url"),
			GitLabProject: r.Get("gitlab_project"),
			JiraURL:       strings.TrimRight(r.Get("jira_url"), "/"),
			JiraEmail:     r.Get("jira_email"),
			JiraToken:     r.Get("jira_token"),
			JiraProject:   r.Get("jira_project"),
			JiraIssueType: r.Get("jira_issue_type"),
		},
		Log: LogSettings{
			Level:  strings.ToLower(r.Get("log_level")),
			Format: strings.ToLower(r.Get("log_format")),
		},
	}
	if len(p.errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(p.errs...))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks cross-field requirements.
func (s *Settings) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch s.LLM.Provider {
	case "openai":
		check(s.LLM.APIKey != "", "openai_api_key is required for the openai provider")
	case "claude":
	default:
		errs = append(errs, fmt.Errorf("llm_provider %q must be openai or claude", s.LLM.Provider))
	}
	check(s.LLM.RequestsPerMinute >= 0, "llm_requests_per_minute must not be negative")

	switch s.Store.Kind {
	case "mongo":
		check(s.Store.MongoURI != "", "mongodb_uri is required for the mongo store")
	case "file":
		check(s.Store.FixturesDir != "", "fixtures_dir is required for the file store")
	default:
		errs = append(errs, fmt.Errorf("store %q must be mongo or file", s.Store.Kind))
	}

	check(s.PlantUML.ServerURL != "" || s.PlantUML.JarPath != "",
		"plantuml_server_url is required unless plantuml_jar is set")
	if s.PlantUML.ServerURL != "" {
		u, err := url.Parse(s.PlantUML.ServerURL)
		check(err == nil && u.Scheme != "" && u.Host != "", "plantuml_server_url %q is not an absolute URL", s.PlantUML.ServerURL)
	}

	check(s.Chunk.MaxPerChunk > 0, "max_per_chunk must be positive")
	check(s.Chunk.MaxItems > 0, "max_items must be positive")
	check(s.Chunk.ADRPolicy == "per_type" || s.Chunk.ADRPolicy == "global",
		"adr_chunking %q must be per_type or global", s.Chunk.ADRPolicy)
	check(s.Chunk.Concurrency > 0, "chunk_concurrency must be positive")
	check(s.Events.QueueSize > 0, "event_queue_size must be positive")
	check(s.Output.Dir != "", "output_dir is required")

	switch s.Publish.Provider {
	case "none", "":
	case "github":
		check(s.Publish.GitHubToken != "", "github_token is required to publish to github")
		check(strings.Count(s.Publish.GitHubRepo, "/") == 1, "github_repo %q must be owner/name", s.Publish.GitHubRepo)
	case "gitlab":
		check(s.Publish.GitLabToken != "", "gitlab_token is required to publish to gitlab")
		check(s.Publish.GitLabProject != "", "gitlab_project is required to publish to gitlab")
	case "jira":
		check(s.Publish.JiraURL != "", "jira_url is required to publish to jira")
		check(s.Publish.JiraToken != "", "jira_token is required to publish to jira")
		check(s.Publish.JiraProject != "", "jira_project is required to publish to jira")
	default:
		errs = append(errs, fmt.Errorf("publish_provider %q must be none, github, gitlab or jira", s.Publish.Provider))
	}

	switch s.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be text or json", s.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// amqpURL prefers an explicit URL and falls back to guest credentials on
// host. Empty means events are not published to a broker.
func amqpURL(rawURL, host string) string {
	if rawURL != "" {
		return rawURL
	}
	if host == "" {
		return ""
	}
	return "amqp://guest:guest@" + host + ":5672/"
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// parser collects conversion errors so Load reports them together.
type parser struct {
	r    *Resolved
	errs []error
}

func (p *parser) integer(key string) int {
	v := p.r.Get(key)
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not an integer", key, v))
	}
	return n
}

func (p *parser) boolean(key string) bool {
	v := p.r.Get(key)
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
	}
	return b
}

func (p *parser) duration(key string) time.Duration {
	v := p.r.Get(key)
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a duration", key, v))
	}
	return d
}
