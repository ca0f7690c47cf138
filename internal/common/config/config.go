// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	HTTP          HTTPConfig              `mapstructure:"http"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Storage       StorageConfig           `mapstructure:"storage"`
	Blob          BlobConfig              `mapstructure:"blob"`
	Search        SearchConfig            `mapstructure:"search"`
	PAN           PANConfig               `mapstructure:"pan"`
	Validation    ValidationConfig        `mapstructure:"validation"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	CatalogPath   string                  `mapstructure:"catalog_path"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Addr                 string `mapstructure:"addr"`
	MaxUploadBytes       int64  `mapstructure:"max_upload_bytes"`
	PublicAttachmentRoot string `mapstructure:"public_attachment_root"`
	ReadTimeout          int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout         int    `mapstructure:"write_timeout"` // milliseconds
	AllowedOrigins       string `mapstructure:"allowed_origins"`
}

type CamundaConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	BrokerAddress   string `mapstructure:"broker_address"`
	ReviewProcessID string `mapstructure:"review_process_id"`
	MaxJobsActive   int    `mapstructure:"max_jobs_active"`
	Timeout         int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout  int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Domain Configuration ---

// StorageConfig selects the form and submission store backend.
type StorageConfig struct {
	Driver           string `mapstructure:"driver"`         // memory | postgres
	FormCacheTTL     int    `mapstructure:"form_cache_ttl"` // milliseconds, 0 disables the redis form cache
	AuditTransitions bool   `mapstructure:"audit_transitions"`
}

// BlobConfig selects where attachment bytes are written.
type BlobConfig struct {
	Driver    string `mapstructure:"driver"` // local | s3 | minio
	LocalRoot string `mapstructure:"local_root"`
	S3        struct {
		Region   string `mapstructure:"region"`
		Bucket   string `mapstructure:"bucket"`
		Prefix   string `mapstructure:"prefix"`
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"s3"`
	Minio struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		UseSSL    bool   `mapstructure:"use_ssl"`
		Bucket    string `mapstructure:"bucket"`
	} `mapstructure:"minio"`
}

type SearchConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

// PANConfig selects the PAN verifier.
type PANConfig struct {
	Verifier string `mapstructure:"verifier"` // prefix | http
	Prefix   string `mapstructure:"prefix"`
	URL      string `mapstructure:"url"`
	APIKey   string `mapstructure:"api_key"`   // sent as X-API-Key by the http verifier
	Timeout  int    `mapstructure:"timeout"`   // milliseconds
	CacheTTL int    `mapstructure:"cache_ttl"` // milliseconds, 0 disables caching
}

type ValidationConfig struct {
	Report           string `mapstructure:"report"` // first | all
	MaxParallelBinds int    `mapstructure:"max_parallel_binds"`
}

// NotificationConfig holds settings for the notify-decision worker.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
