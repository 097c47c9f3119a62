// Package config gathers the tunables of every component
// in a single document, defaults filling the gaps.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	jsoniter "github.com/json-iterator/go"
	"github.com/streambinder/youterm/discovery"
	"github.com/streambinder/youterm/history"
	"github.com/streambinder/youterm/provider"
	"github.com/streambinder/youterm/quality"
	"github.com/streambinder/youterm/queue"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Config struct {
	Quality   quality.Config   `json:"quality"`
	Discovery discovery.Config `json:"discovery"`
	Queue     queue.Config     `json:"queue"`
	History   history.Config   `json:"history"`
	CacheSize int              `json:"cache_size"` // search results kept in memory
}

func Default() Config {
	return Config{
		Quality:   quality.DefaultConfig(),
		Discovery: discovery.DefaultConfig(),
		Queue:     queue.DefaultConfig(),
		History:   history.DefaultConfig(),
		CacheSize: provider.DefaultCacheSize,
	}
}

func DefaultPath() (string, error) {
	return xdg.ConfigFile("youterm/config.json")
}

// Load reads the document at path over the defaults:
// a missing document yields the defaults
func Load(path string) (Config, error) {
	config := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	} else if err != nil {
		return config, err
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return Default(), fmt.Errorf("config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return Default(), fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

func Save(path string, config Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c Config) Validate() error {
	var errs []error
	if c.CacheSize < 0 {
		errs = append(errs, errors.New("cache size must not be negative"))
	}
	return errors.Join(append(errs,
		c.Quality.Validate(),
		c.Discovery.Validate(),
		c.Queue.Validate(),
		c.History.Validate(),
	)...)
}
