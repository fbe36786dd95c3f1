package configloader

import (
	"fmt"
	"os"
	"time"

	"sakura_marketplace/internal/domain/entity"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                string   `yaml:"port"`
	AllowedOrigins      []string `yaml:"allowedOrigins"`
	ShutdownTimeoutSecs int      `yaml:"shutdownTimeoutSeconds"`
	MaxUploadBytes      int64    `yaml:"maxUploadBytes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// PerformanceConfig holds RPC timeouts.
type PerformanceConfig struct {
	MaxConcurrentRoutines    int `yaml:"max_concurrent_routines"`
	RPCCallTimeoutSeconds    int `yaml:"rpc_call_timeout_seconds"`
	ConnectionTimeoutSeconds int `yaml:"connection_timeout_seconds"`
}

// RPCClientConfig throttles read-only calls per network.
type RPCClientConfig struct {
	RateLimit  float64 `yaml:"rateLimit"`
	BurstLimit int     `yaml:"burstLimit"`
}

// CircuitBreakerConfig configures the breaker wrapped around each network client.
type CircuitBreakerConfig struct {
	MaxRequests         uint32 `yaml:"maxRequests"`
	IntervalSeconds     int    `yaml:"intervalSeconds"`
	TimeoutSeconds      int    `yaml:"timeoutSeconds"`
	ConsecutiveFailures uint32 `yaml:"consecutiveFailures"`
}

// WalletEndpointConfig binds a wallet kind to its JSON-RPC endpoint.
type WalletEndpointConfig struct {
	Kind     string `yaml:"kind"`
	Endpoint string `yaml:"endpoint"`
}

// WalletConfig configures wallet provider access.
type WalletConfig struct {
	Endpoints           []WalletEndpointConfig `yaml:"endpoints"`
	ProbeTimeoutSeconds int                    `yaml:"probeTimeoutSeconds"`
	PollIntervalMillis  int                    `yaml:"pollIntervalMillis"`
}

// SupabaseConfig points at the hosted data store.
type SupabaseConfig struct {
	URL            string `yaml:"url"`
	Key            string `yaml:"key"`
	ImagesBucket   string `yaml:"imagesBucket"`
	MetadataBucket string `yaml:"metadataBucket"`
	RealtimeURL    string `yaml:"realtimeURL"`
}

// WorkflowConfig tunes the transaction sagas.
type WorkflowConfig struct {
	ConfirmationTimeoutSeconds int    `yaml:"confirmationTimeoutSeconds"`
	ReceiptPollIntervalMillis  int    `yaml:"receiptPollIntervalMillis"`
	FallbackGasLimit           uint64 `yaml:"fallbackGasLimit"`
	StoreWriteRetries          int    `yaml:"storeWriteRetries"`
	StoreRetryDelayMillis      int    `yaml:"storeRetryDelayMillis"`
	MetadataProbeRetries       int    `yaml:"metadataProbeRetries"`
	MaxImageBytes              int    `yaml:"maxImageBytes"`
}

// CacheConfig configures the read-model cache.
type CacheConfig struct {
	DefaultExpirationSeconds int `yaml:"defaultExpirationSeconds"`
	CleanupIntervalSeconds   int `yaml:"cleanupIntervalSeconds"`
	ActivityLimit            int `yaml:"activityLimit"`
	ListingsLimit            int `yaml:"listingsLimit"`
	RefreshDebounceMillis    int `yaml:"refreshDebounceMillis"`
}

// ReconcilerConfig configures the background retry of failed off-chain writes.
type ReconcilerConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds"`
	MaxAttempts     int `yaml:"maxAttempts"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Performance    PerformanceConfig    `yaml:"performance"`
	RPCClient      RPCClientConfig      `yaml:"rpcClient"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
	Wallets        WalletConfig         `yaml:"wallets"`
	Supabase       SupabaseConfig       `yaml:"supabase"`
	Workflow       WorkflowConfig       `yaml:"workflow"`
	Cache          CacheConfig          `yaml:"cache"`
	Reconciler     ReconcilerConfig     `yaml:"reconciler"`
}

// Load reads the YAML configuration file from the given path, applies defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals raw YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ShutdownTimeoutSecs <= 0 {
		c.Server.ShutdownTimeoutSecs = 5
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = 12 << 20
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Performance.MaxConcurrentRoutines <= 0 {
		c.Performance.MaxConcurrentRoutines = 10
	}
	if c.Performance.RPCCallTimeoutSeconds <= 0 {
		c.Performance.RPCCallTimeoutSeconds = 10
	}
	if c.Performance.ConnectionTimeoutSeconds <= 0 {
		c.Performance.ConnectionTimeoutSeconds = 10
	}

	if c.RPCClient.RateLimit <= 0 {
		c.RPCClient.RateLimit = 10
	}
	if c.RPCClient.BurstLimit <= 0 {
		c.RPCClient.BurstLimit = 20
	}

	if c.CircuitBreaker.MaxRequests == 0 {
		c.CircuitBreaker.MaxRequests = 3
	}
	if c.CircuitBreaker.IntervalSeconds <= 0 {
		c.CircuitBreaker.IntervalSeconds = 60
	}
	if c.CircuitBreaker.TimeoutSeconds <= 0 {
		c.CircuitBreaker.TimeoutSeconds = 30
	}
	if c.CircuitBreaker.ConsecutiveFailures == 0 {
		c.CircuitBreaker.ConsecutiveFailures = 5
	}

	if c.Wallets.ProbeTimeoutSeconds <= 0 {
		c.Wallets.ProbeTimeoutSeconds = 3
	}
	if c.Wallets.PollIntervalMillis <= 0 {
		c.Wallets.PollIntervalMillis = 1500
	}

	if c.Supabase.ImagesBucket == "" {
		c.Supabase.ImagesBucket = "nft-images"
	}
	if c.Supabase.MetadataBucket == "" {
		c.Supabase.MetadataBucket = "nft-metadata"
	}

	if c.Workflow.ConfirmationTimeoutSeconds <= 0 {
		c.Workflow.ConfirmationTimeoutSeconds = 180
	}
	if c.Workflow.ReceiptPollIntervalMillis <= 0 {
		c.Workflow.ReceiptPollIntervalMillis = 2000
	}
	if c.Workflow.FallbackGasLimit == 0 {
		c.Workflow.FallbackGasLimit = 500_000
	}
	if c.Workflow.StoreWriteRetries <= 0 {
		c.Workflow.StoreWriteRetries = 3
	}
	if c.Workflow.StoreRetryDelayMillis <= 0 {
		c.Workflow.StoreRetryDelayMillis = 500
	}
	if c.Workflow.MetadataProbeRetries <= 0 {
		c.Workflow.MetadataProbeRetries = 3
	}
	if c.Workflow.MaxImageBytes <= 0 {
		c.Workflow.MaxImageBytes = 10 << 20
	}

	if c.Cache.DefaultExpirationSeconds <= 0 {
		c.Cache.DefaultExpirationSeconds = 60
	}
	if c.Cache.CleanupIntervalSeconds <= 0 {
		c.Cache.CleanupIntervalSeconds = 300
	}
	if c.Cache.ActivityLimit <= 0 {
		c.Cache.ActivityLimit = 50
	}
	if c.Cache.ListingsLimit <= 0 {
		c.Cache.ListingsLimit = 100
	}
	if c.Cache.RefreshDebounceMillis <= 0 {
		c.Cache.RefreshDebounceMillis = 250
	}

	if c.Reconciler.IntervalSeconds <= 0 {
		c.Reconciler.IntervalSeconds = 30
	}
	if c.Reconciler.MaxAttempts <= 0 {
		c.Reconciler.MaxAttempts = 10
	}
}

// Validate checks the fields that have no sensible default.
func (c *Config) Validate() error {
	if c.Supabase.URL == "" || c.Supabase.Key == "" {
		return fmt.Errorf("supabase.url and supabase.key are required")
	}
	seen := make(map[entity.WalletKind]struct{}, len(c.Wallets.Endpoints))
	for i, w := range c.Wallets.Endpoints {
		kind, err := entity.ParseWalletKind(w.Kind)
		if err != nil {
			return fmt.Errorf("wallets.endpoints[%d]: %w", i, err)
		}
		if w.Endpoint == "" {
			return fmt.Errorf("wallets.endpoints[%d]: endpoint is required for %s", i, kind)
		}
		if _, dup := seen[kind]; dup {
			return fmt.Errorf("wallets.endpoints[%d]: duplicate wallet kind %s", i, kind)
		}
		seen[kind] = struct{}{}
	}
	return nil
}

// WalletEndpoints returns the configured endpoint per wallet kind.
func (c *Config) WalletEndpoints() map[entity.WalletKind]string {
	out := make(map[entity.WalletKind]string, len(c.Wallets.Endpoints))
	for _, w := range c.Wallets.Endpoints {
		if kind, err := entity.ParseWalletKind(w.Kind); err == nil {
			out[kind] = w.Endpoint
		}
	}
	return out
}

// RPCCallTimeout is the per-call deadline for read-only RPC.
func (c *Config) RPCCallTimeout() time.Duration {
	return time.Duration(c.Performance.RPCCallTimeoutSeconds) * time.Second
}

// ConnectionTimeout bounds dialing an RPC endpoint.
func (c *Config) ConnectionTimeout() time.Duration {
	return time.Duration(c.Performance.ConnectionTimeoutSeconds) * time.Second
}
