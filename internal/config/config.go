package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pool families accepted in configuration.
const (
	FamilyUniswap  = "uniswap"
	FamilyBalancer = "balancer"
	FamilyCurve    = "curve"
	FamilyDodo     = "dodo"
)

// Config holds all application configuration.
type Config struct {
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Pools       []PoolConfig      `yaml:"pools"`
	Sweeps      SweepsConfig      `yaml:"sweeps"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// AnalysisConfig holds run-wide analysis settings.
type AnalysisConfig struct {
	OraclePrice       float64  `yaml:"oracle_price"`
	Workers           int      `yaml:"workers"`
	ChunkSize         int      `yaml:"chunk_size"`
	ConvergencePolicy string   `yaml:"convergence_policy"` // skip or abort
	Run               []string `yaml:"run"`                // sweep names; empty runs all
}

// PoolConfig describes one pool under analysis.
type PoolConfig struct {
	Name          string     `yaml:"name"`
	Family        string     `yaml:"family"`
	Reserves      [2]float64 `yaml:"reserves"`
	Weights       [2]float64 `yaml:"weights"`
	Amplification float64    `yaml:"amplification"`
	Fee           float64    `yaml:"fee"`
}

// RangeConfig is a half-open domain [start, stop) with a fixed step.
type RangeConfig struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Step  float64 `yaml:"step"`
}

// SweepsConfig holds the domain of every sweep family.
type SweepsConfig struct {
	Conservation       RangeConfig `yaml:"conservation"`
	Slippage           RangeConfig `yaml:"slippage"`
	PriceDivergence    RangeConfig `yaml:"price_divergence"`
	QuantityDivergence RangeConfig `yaml:"quantity_divergence"`
}

// PersistenceConfig holds database settings.
type PersistenceConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	// Set defaults
	cfg.setDefaults()

	// Read YAML file if it exists
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if len(data) > 0 {
		// Expand environment variables in YAML content
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// initialReserve is the reserve of each token in the default pools.
const initialReserve = 40.0

// DefaultPools returns the ten pools of the reference analysis.
func DefaultPools() []PoolConfig {
	r := [2]float64{initialReserve, initialReserve}
	return []PoolConfig{
		{Name: "uniswap", Family: FamilyUniswap, Reserves: r, Fee: 0.003},
		{Name: "balancer_50_50", Family: FamilyBalancer, Reserves: r, Weights: [2]float64{0.5, 0.5}, Fee: 0.003},
		{Name: "balancer_95_5", Family: FamilyBalancer, Reserves: r, Weights: [2]float64{0.95, 0.05}, Fee: 0.003},
		{Name: "balancer_5_95", Family: FamilyBalancer, Reserves: r, Weights: [2]float64{0.05, 0.95}, Fee: 0.003},
		{Name: "curve_A_0", Family: FamilyCurve, Reserves: r, Amplification: 0.0001, Fee: 0.0004},
		{Name: "curve_A_5", Family: FamilyCurve, Reserves: r, Amplification: 5, Fee: 0.0004},
		{Name: "curve_A_10000", Family: FamilyCurve, Reserves: r, Amplification: 10000, Fee: 0.0004},
		{Name: "dodo_A_001", Family: FamilyDodo, Reserves: r, Amplification: 0.01, Fee: 0.003},
		{Name: "dodo_A_05", Family: FamilyDodo, Reserves: r, Amplification: 0.5, Fee: 0.003},
		{Name: "dodo_A_099", Family: FamilyDodo, Reserves: r, Amplification: 0.99, Fee: 0.003},
	}
}

// setDefaults sets default values for all configuration options.
func (c *Config) setDefaults() {
	c.Analysis = AnalysisConfig{
		OraclePrice:       1,
		Workers:           4,
		ChunkSize:         4096,
		ConvergencePolicy: "skip",
	}
	c.Pools = DefaultPools()
	c.Sweeps = SweepsConfig{
		Conservation:       RangeConfig{Start: -0.9999999 * initialReserve, Stop: 5.1 * initialReserve, Step: 0.1},
		Slippage:           RangeConfig{Start: -initialReserve, Stop: 2 * initialReserve, Step: 0.0001},
		PriceDivergence:    RangeConfig{Start: -1, Stop: 5.1, Step: 0.01},
		QuantityDivergence: RangeConfig{Start: -initialReserve, Stop: 5.1 * initialReserve, Step: 0.0001},
	}
	c.Persistence = PersistenceConfig{
		SQLitePath: "./data/curvelab.db",
	}
	c.Metrics = MetricsConfig{
		Enabled: false,
		Port:    8080,
		Path:    "/metrics",
	}
	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "console",
	}
}

// applyEnvOverrides applies environment variable overrides to configuration.
func (c *Config) applyEnvOverrides() {
	// Analysis config
	if v := os.Getenv("ORACLE_PRICE"); v != "" {
		var price float64
		if _, err := fmt.Sscanf(v, "%f", &price); err == nil && price > 0 {
			c.Analysis.OraclePrice = price
		}
	}
	if v := os.Getenv("SWEEP_WORKERS"); v != "" {
		var workers int
		if _, err := fmt.Sscanf(v, "%d", &workers); err == nil && workers > 0 {
			c.Analysis.Workers = workers
		}
	}

	// Metrics config
	if v := os.Getenv("METRICS_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			c.Metrics.Port = port
		}
	}

	// Persistence config
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Persistence.SQLitePath = v
	}

	// Logging config
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// validate checks that all required configuration values are present and valid.
func (c *Config) validate() error {
	if !(c.Analysis.OraclePrice > 0) || math.IsInf(c.Analysis.OraclePrice, 0) {
		return fmt.Errorf("analysis.oracle_price must be positive")
	}
	if c.Analysis.Workers <= 0 {
		return fmt.Errorf("analysis.workers must be positive")
	}
	if c.Analysis.ChunkSize <= 0 {
		return fmt.Errorf("analysis.chunk_size must be positive")
	}
	switch c.Analysis.ConvergencePolicy {
	case "skip", "abort":
	default:
		return fmt.Errorf("analysis.convergence_policy must be skip or abort, got %q", c.Analysis.ConvergencePolicy)
	}
	for _, name := range c.Analysis.Run {
		if !isSweepName(name) {
			return fmt.Errorf("analysis.run: unknown sweep %q", name)
		}
	}

	if len(c.Pools) == 0 {
		return fmt.Errorf("pools must have at least one pool")
	}
	seen := make(map[string]bool, len(c.Pools))
	for idx, p := range c.Pools {
		if p.Name == "" {
			return fmt.Errorf("pools[%d].name is required", idx)
		}
		if seen[p.Name] {
			return fmt.Errorf("pools[%d]: duplicate name %q", idx, p.Name)
		}
		seen[p.Name] = true
		if err := p.validate(); err != nil {
			return fmt.Errorf("pools[%d] (%s): %w", idx, p.Name, err)
		}
	}

	ranges := map[string]RangeConfig{
		"conservation":        c.Sweeps.Conservation,
		"slippage":            c.Sweeps.Slippage,
		"price_divergence":    c.Sweeps.PriceDivergence,
		"quantity_divergence": c.Sweeps.QuantityDivergence,
	}
	for name, r := range ranges {
		if !(r.Step > 0) {
			return fmt.Errorf("sweeps.%s.step must be positive", name)
		}
		if r.Stop <= r.Start {
			return fmt.Errorf("sweeps.%s.stop must be greater than start", name)
		}
	}

	if c.Persistence.SQLitePath == "" {
		return fmt.Errorf("persistence.sqlite_path is required (set SQLITE_PATH env var)")
	}
	if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be a valid port number")
	}
	return nil
}

func (p PoolConfig) validate() error {
	if p.Reserves[0] <= 0 || p.Reserves[1] <= 0 {
		return fmt.Errorf("reserves must be positive")
	}
	if p.Fee < 0 || p.Fee >= 1 {
		return fmt.Errorf("fee must be in [0, 1)")
	}
	switch p.Family {
	case FamilyUniswap:
	case FamilyBalancer:
		if math.Abs(p.Weights[0]+p.Weights[1]-1) > 1e-9 || p.Weights[0] <= 0 || p.Weights[1] <= 0 {
			return fmt.Errorf("weights must be positive and sum to 1")
		}
	case FamilyCurve:
		if p.Amplification < 0 {
			return fmt.Errorf("amplification must be non-negative")
		}
	case FamilyDodo:
		if p.Amplification <= 0 || p.Amplification > 1 {
			return fmt.Errorf("amplification must be in (0, 1]")
		}
	default:
		return fmt.Errorf("unknown family %q", p.Family)
	}
	return nil
}

// Sweep names accepted in analysis.run.
var sweepNames = []string{"conservation", "slippage", "divergence_loss"}

func isSweepName(name string) bool {
	for _, n := range sweepNames {
		if n == name {
			return true
		}
	}
	return false
}

// ShouldRun reports whether the named sweep is enabled.
func (a AnalysisConfig) ShouldRun(name string) bool {
	if len(a.Run) == 0 {
		return true
	}
	for _, n := range a.Run {
		if n == name {
			return true
		}
	}
	return false
}
