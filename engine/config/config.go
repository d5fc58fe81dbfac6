// Package config loads the engine's tunable settings from YAML and
// supports hot-reloading them from disk, so crawl budgets, scoring
// thresholds and the MCC confidence floor can be adjusted without a
// redeploy.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the engine reads outside the fixed code
// paths: crawl budgets, cache TTLs, and the thresholds the scoring and
// rules engines compare against.
type Config struct {
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`

	Crawl struct {
		MaxPages        int           `yaml:"max_pages"`
		MaxConcurrency  int           `yaml:"max_concurrency"`
		TotalTimeBudget time.Duration `yaml:"total_time_budget"`
		RequestDelay    time.Duration `yaml:"request_delay"`
	} `yaml:"crawl"`

	Scoring struct {
		DomainAgeEstablishedDays int     `yaml:"domain_age_established_days"`
		DomainAgeMatureDays      int     `yaml:"domain_age_mature_days"`
		ShallowPolicyContentMin  int     `yaml:"shallow_policy_content_min"`
		GoodRatingThreshold      float64 `yaml:"good_rating_threshold"`
		FairRatingThreshold      float64 `yaml:"fair_rating_threshold"`
	} `yaml:"scoring"`

	MCC struct {
		MinConfidence float64 `yaml:"min_confidence"`
	} `yaml:"mcc"`

	Cache struct {
		RDAPTTL time.Duration `yaml:"rdap_ttl"`
	} `yaml:"cache"`
}

// Default returns the built-in configuration used when no file is
// provided — the same thresholds the engine's code otherwise hardcodes.
func Default() *Config {
	c := &Config{Version: "1.0.0", Environment: "production"}
	c.Crawl.MaxPages = 20
	c.Crawl.MaxConcurrency = 10
	c.Crawl.TotalTimeBudget = 10 * time.Second
	c.Crawl.RequestDelay = 250 * time.Millisecond
	c.Scoring.DomainAgeEstablishedDays = 365
	c.Scoring.DomainAgeMatureDays = 1095
	c.Scoring.ShallowPolicyContentMin = 200
	c.Scoring.GoodRatingThreshold = 80
	c.Scoring.FairRatingThreshold = 50
	c.MCC.MinConfidence = 30
	c.Cache.RDAPTTL = 24 * time.Hour
	return c
}

// Load reads and parses a YAML config file, filling any field the file
// omits from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}

// Store holds the current Config behind a mutex so a hot-reload goroutine
// can swap it out while request handlers read the old value concurrently.
type Store struct {
	mu  sync.RWMutex
	cur *Config
}

// NewStore wraps an initial Config in a Store.
func NewStore(initial *Config) *Store {
	return &Store{cur: initial}
}

// Get returns the current configuration.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Set atomically swaps in a new configuration.
func (s *Store) Set(c *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = c
}
