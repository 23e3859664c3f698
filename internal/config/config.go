package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Security   SecurityConfig   `yaml:"security" mapstructure:"security"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Features   FeaturesConfig   `yaml:"features" mapstructure:"features"`
	I18n       I18nConfig       `yaml:"i18n" mapstructure:"i18n"`
	Company    CompanyConfig    `yaml:"company" mapstructure:"company"`
	AI         AIConfig         `yaml:"ai" mapstructure:"ai"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`

	settings map[string]any
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// BatchConfig configures batch generation.
type BatchConfig struct {
	MaxConcurrentRequests int `yaml:"max_concurrent_requests" mapstructure:"max_concurrent_requests"`
	MaxRetries            int `yaml:"max_retries" mapstructure:"max_retries"`
}

// SecurityConfig holds CORS and rate limiting settings for the HTTP server.
type SecurityConfig struct {
	AllowedOrigins []string          `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimiting   RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	// TrustedProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Only set it behind a proxy that overwrites those headers.
	TrustedProxy bool `yaml:"trusted_proxy" mapstructure:"trusted_proxy"`
}

// RateLimitingConfig limits requests per client over a window.
type RateLimitingConfig struct {
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxRequests int           `yaml:"max_requests" mapstructure:"max_requests"`
	Window      time.Duration `yaml:"window" mapstructure:"window"`
}

// NotionConfig holds Notion API credentials and the document database id.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	DocumentDB string `yaml:"document_db" mapstructure:"document_db"`
	LeadDB     string `yaml:"lead_db" mapstructure:"lead_db"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// RedisConfig configures the optional Redis cache for company lookups.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// ResilienceConfig configures retries and the circuit breaker around the
// external-data source.
type ResilienceConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// FeaturesConfig toggles generators and integrations.
type FeaturesConfig struct {
	Offers         bool `yaml:"offers" mapstructure:"offers"`
	Contracts      bool `yaml:"contracts" mapstructure:"contracts"`
	LeadHunter     bool `yaml:"lead_hunter" mapstructure:"lead_hunter"`
	CompanyReports bool `yaml:"company_reports" mapstructure:"company_reports"`
	PricingCalc    bool `yaml:"pricing_calculator" mapstructure:"pricing_calculator"`
	NotionPublish  bool `yaml:"notion_publish" mapstructure:"notion_publish"`
	CRMIntegration bool `yaml:"crm_integration" mapstructure:"crm_integration"`
	Caching        bool `yaml:"caching" mapstructure:"caching"`
}

// I18nConfig holds the single supported locale.
type I18nConfig struct {
	Locale     string `yaml:"locale" mapstructure:"locale"`
	Currency   string `yaml:"currency" mapstructure:"currency"`
	DateFormat string `yaml:"date_format" mapstructure:"date_format"`
}

// CompanyConfig describes the provider issuing the documents.
type CompanyConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Team    string `yaml:"team" mapstructure:"team"`
	Contact string `yaml:"contact" mapstructure:"contact"`
}

// AIConfig holds per-generator settings.
type AIConfig struct {
	Offer    OfferConfig    `yaml:"offer" mapstructure:"offer"`
	Contract ContractConfig `yaml:"contract" mapstructure:"contract"`
	Leads    LeadsConfig    `yaml:"leads" mapstructure:"leads"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
	Delays   DelaysConfig   `yaml:"delays" mapstructure:"delays"`
}

// OfferConfig configures the offer generator.
type OfferConfig struct {
	IDPrefix       string   `yaml:"id_prefix" mapstructure:"id_prefix"`
	IDLength       int      `yaml:"id_length" mapstructure:"id_length"`
	ValidityDays   int      `yaml:"validity_days" mapstructure:"validity_days"`
	ResponseDays   int      `yaml:"response_days" mapstructure:"response_days"`
	Footers        []string `yaml:"footers" mapstructure:"footers"`
	PackageCodes   []string `yaml:"package_codes" mapstructure:"package_codes"`
	DefaultBudget  []int    `yaml:"default_budget_range" mapstructure:"default_budget_range"`
	DefaultTimeline string  `yaml:"default_timeline" mapstructure:"default_timeline"`
}

// ContractConfig configures the contract generator.
type ContractConfig struct {
	IDPrefix string   `yaml:"id_prefix" mapstructure:"id_prefix"`
	IDLength int      `yaml:"id_length" mapstructure:"id_length"`
	Types    []string `yaml:"types" mapstructure:"types"`
}

// LeadsConfig configures the lead hunter.
type LeadsConfig struct {
	IDPrefix              string         `yaml:"id_prefix" mapstructure:"id_prefix"`
	IDLength              int            `yaml:"id_length" mapstructure:"id_length"`
	MaxResults            int            `yaml:"max_results" mapstructure:"max_results"`
	Industries            []string       `yaml:"industries" mapstructure:"industries"`
	Regions               []string       `yaml:"regions" mapstructure:"regions"`
	ConversionRates       map[string]int `yaml:"conversion_rates" mapstructure:"conversion_rates"`
	DefaultConversionRate int            `yaml:"default_conversion_rate" mapstructure:"default_conversion_rate"`
}

// ReportConfig configures company reports.
type ReportConfig struct {
	IDPrefix      string        `yaml:"id_prefix" mapstructure:"id_prefix"`
	IDLength      int           `yaml:"id_length" mapstructure:"id_length"`
	AnalysisTypes []string      `yaml:"analysis_types" mapstructure:"analysis_types"`
	DataSources   []string      `yaml:"data_sources" mapstructure:"data_sources"`
	CacheDuration time.Duration `yaml:"cache_duration" mapstructure:"cache_duration"`
}

// DelaysConfig holds the simulated processing latency per document kind.
type DelaysConfig struct {
	Offer    time.Duration `yaml:"offer" mapstructure:"offer"`
	Contract time.Duration `yaml:"contract" mapstructure:"contract"`
	Leads    time.Duration `yaml:"leads" mapstructure:"leads"`
	Company  time.Duration `yaml:"company" mapstructure:"company"`
}

// PricingConfig holds the success-fee model and the known-company table.
type PricingConfig struct {
	DefaultPercent float64                `yaml:"default_percent" mapstructure:"default_percent"`
	MinPercent     float64                `yaml:"min_percent" mapstructure:"min_percent"`
	MaxPercent     float64                `yaml:"max_percent" mapstructure:"max_percent"`
	Defaults       PricingDefaults        `yaml:"defaults" mapstructure:"defaults"`
	MockCompanies  map[string]MockCompany `yaml:"mock_companies" mapstructure:"mock_companies"`
}

// PricingDefaults are the assumptions of the time-savings model.
type PricingDefaults struct {
	HoursSavedPerDay   float64 `yaml:"hours_saved_per_day" mapstructure:"hours_saved_per_day"`
	WorkDaysPerYear    float64 `yaml:"work_days_per_year" mapstructure:"work_days_per_year"`
	WorkHoursPerWeek   float64 `yaml:"work_hours_per_week" mapstructure:"work_hours_per_week"`
	MonthlySalary      float64 `yaml:"monthly_salary" mapstructure:"monthly_salary"`
	MaintenancePercent float64 `yaml:"maintenance_percent" mapstructure:"maintenance_percent"`
}

// MockCompany is a known company used instead of random attributes.
type MockCompany struct {
	Name      string `yaml:"name" mapstructure:"name"`
	OrgNr     string `yaml:"orgnr" mapstructure:"orgnr"`
	Employees int    `yaml:"employees" mapstructure:"employees"`
	Revenue   int64  `yaml:"revenue" mapstructure:"revenue"`
	Result    int64  `yaml:"result" mapstructure:"result"`
	Industry  string `yaml:"industry" mapstructure:"industry"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("AIKI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	return fromViper(v)
}

// Defaults returns a Config populated only from built-in defaults.
func Defaults() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := fromViper(v)
	if err != nil {
		// Built-in defaults always decode.
		panic(err)
	}
	return cfg
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.settings = v.AllSettings()
	return &cfg, nil
}

// Provider returns a read-only key-path view over the loaded settings.
func (c *Config) Provider() *MapProvider {
	return NewProvider(c.settings)
}

// SetDefaults registers every configuration default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "aiki.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_requests", 5)
	v.SetDefault("batch.max_retries", 3)

	v.SetDefault("security.allowed_origins", []string{"http://localhost", "http://127.0.0.1"})
	v.SetDefault("security.rate_limiting.enabled", false)
	v.SetDefault("security.rate_limiting.max_requests", 100)
	v.SetDefault("security.rate_limiting.window", 15*time.Minute)
	v.SetDefault("security.trusted_proxy", false)

	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("redis.db", 0)

	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 30000)
	v.SetDefault("resilience.multiplier", 2.0)
	v.SetDefault("resilience.jitter_fraction", 0.25)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)

	v.SetDefault("features.offers", true)
	v.SetDefault("features.contracts", true)
	v.SetDefault("features.lead_hunter", true)
	v.SetDefault("features.company_reports", true)
	v.SetDefault("features.pricing_calculator", true)
	v.SetDefault("features.notion_publish", false)
	v.SetDefault("features.crm_integration", false)
	v.SetDefault("features.caching", true)

	v.SetDefault("i18n.locale", "nb-NO")
	v.SetDefault("i18n.currency", "NOK")
	v.SetDefault("i18n.date_format", "dd.mm.yyyy")

	v.SetDefault("company.name", "AIKI")
	v.SetDefault("company.team", "AIKI Development Team")
	v.SetDefault("company.contact", "ai@aiki.no | +47 xxx xx xxx")

	v.SetDefault("ai.offer.id_prefix", "AIKI")
	v.SetDefault("ai.offer.id_length", 6)
	v.SetDefault("ai.offer.validity_days", 30)
	v.SetDefault("ai.offer.response_days", 7)
	v.SetDefault("ai.offer.footers", []string{
		"Powered by AIKI - Where AI meets Business Excellence!",
		"AIKI: Unleashing AI with professional precision!",
	})
	v.SetDefault("ai.offer.package_codes", []string{"ai_kickstart", "ai_revisjon", "skreddersydd_automasjon", "annen"})
	v.SetDefault("ai.offer.default_budget_range", []int{50000, 500000})
	v.SetDefault("ai.offer.default_timeline", "4-8 uker")

	v.SetDefault("ai.contract.id_prefix", "KONTRAKT")
	v.SetDefault("ai.contract.id_length", 8)
	v.SetDefault("ai.contract.types", []string{"tjeneste", "salg", "konsulent", "lisens", "partnerskap"})

	v.SetDefault("ai.leads.id_prefix", "LEADS")
	v.SetDefault("ai.leads.id_length", 6)
	v.SetDefault("ai.leads.max_results", 5)
	v.SetDefault("ai.leads.industries", []string{"teknologi", "finans", "helse", "industri"})
	v.SetDefault("ai.leads.regions", []string{"Norge", "Skandinavia", "Norden"})
	v.SetDefault("ai.leads.conversion_rates", map[string]any{
		"teknologi": 25,
		"finans":    15,
		"helse":     20,
		"industri":  30,
	})
	v.SetDefault("ai.leads.default_conversion_rate", 20)

	v.SetDefault("ai.report.id_prefix", "ANALYSE")
	v.SetDefault("ai.report.id_length", 6)
	v.SetDefault("ai.report.analysis_types", []string{"grunnleggende", "økonomisk", "teknologi", "konkurranse", "komplett"})
	v.SetDefault("ai.report.data_sources", []string{"proff", "brreg", "linkedin"})
	v.SetDefault("ai.report.cache_duration", time.Hour)

	v.SetDefault("ai.delays.offer", 2*time.Second)
	v.SetDefault("ai.delays.contract", 2500*time.Millisecond)
	v.SetDefault("ai.delays.leads", 3*time.Second)
	v.SetDefault("ai.delays.company", 2500*time.Millisecond)

	v.SetDefault("pricing.default_percent", 1.5)
	v.SetDefault("pricing.min_percent", 0.5)
	v.SetDefault("pricing.max_percent", 3.0)
	v.SetDefault("pricing.defaults.hours_saved_per_day", 2.0)
	v.SetDefault("pricing.defaults.work_days_per_year", 250.0)
	v.SetDefault("pricing.defaults.work_hours_per_week", 37.5)
	v.SetDefault("pricing.defaults.monthly_salary", 65000.0)
	v.SetDefault("pricing.defaults.maintenance_percent", 0.1)
	v.SetDefault("pricing.mock_companies", defaultMockCompanies())
}

func defaultMockCompanies() map[string]any {
	company := func(name, orgnr string, employees int, revenue, result int64, industry string) map[string]any {
		return map[string]any{
			"name":      name,
			"orgnr":     orgnr,
			"employees": employees,
			"revenue":   revenue,
			"result":    result,
			"industry":  industry,
		}
	}
	return map[string]any{
		"equinor":     company("Equinor ASA", "923609016", 21000, 1051000000000, 74900000000, "Energi"),
		"telenor":     company("Telenor ASA", "935926275", 21000, 105000000000, 8500000000, "Telekommunikasjon"),
		"orkla":       company("Orkla ASA", "910747711", 18500, 50400000000, 4200000000, "FMCG"),
		"yara":        company("Yara International ASA", "986228608", 17000, 187000000000, 15600000000, "Kjemikalier"),
		"dnb":         company("DNB ASA", "984851006", 9500, 56000000000, 25400000000, "Bank/Finans"),
		"norsk_hydro": company("Norsk Hydro ASA", "916142840", 35000, 156000000000, 12300000000, "Industri"),
	}
}

// Validate checks that the settings required by the given mode are present.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535 (got %d)", c.Server.Port))
		}
		if c.Security.RateLimiting.Enabled && c.Security.RateLimiting.MaxRequests <= 0 {
			errs = append(errs, "security.rate_limiting.max_requests must be > 0 when enabled")
		}
	case "notion":
		if c.Notion.Token == "" {
			errs = append(errs, "notion.token is required")
		}
		if c.Notion.DocumentDB == "" {
			errs = append(errs, "notion.document_db is required")
		}
	case "salesforce":
		if c.Salesforce.ClientID == "" {
			errs = append(errs, "salesforce.client_id is required")
		}
		if c.Salesforce.Username == "" {
			errs = append(errs, "salesforce.username is required")
		}
		if c.Salesforce.KeyPath == "" {
			errs = append(errs, "salesforce.key_path is required")
		}
	case "generate":
	case "store":
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres (got %q)", c.Store.Driver))
		}
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Batch.MaxConcurrentRequests < 1 || c.Batch.MaxConcurrentRequests > 50 {
		errs = append(errs, fmt.Sprintf("batch.max_concurrent_requests must be between 1 and 50 (got %d)", c.Batch.MaxConcurrentRequests))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
