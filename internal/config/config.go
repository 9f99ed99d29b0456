package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/torfstack/chksum/internal/checksum"
	"github.com/torfstack/chksum/internal/logging"
	"github.com/torfstack/chksum/internal/util"
)

var (
	configFilePath  = filepath.Join(util.ConfigDir, "config.toml")
	defaultWatchDir = util.HomeDir()
	defaultDebounce = 500 * time.Millisecond
	defaultIgnore   = []string{".git", ".DS_Store", "*.swp", "*~"}
)

type Config struct {
	Algorithm   string        `toml:"algorithm"`
	Format      string        `toml:"format"`
	BlockSize   int           `toml:"block_size"`
	Workers     int           `toml:"workers"`
	Ignore      []string      `toml:"ignore"`
	WatchDir    string        `toml:"watch_dir"`
	Debounce    time.Duration `toml:"debounce"`
	DriveFolder string        `toml:"drive_folder"`
}

// SetPath overrides the location of the config file.
func SetPath(path string) {
	configFilePath = util.ExpandHome(path)
}

func Path() string {
	return configFilePath
}

func Get() (Config, error) {
	return get(false)
}

func GetInteractive() (Config, error) {
	return get(true)
}

func get(interactive bool) (Config, error) {
	c := Config{}
	f, err := os.Open(configFilePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return initConfig(interactive)
	case err != nil:
		return c, fmt.Errorf("could not open config file for reading '%s': %w", configFilePath, err)
	}
	defer f.Close()

	_, err = toml.NewDecoder(f).Decode(&c)
	if err != nil {
		return c, fmt.Errorf("could not decode config file '%s': %w", configFilePath, err)
	}
	c.applyDefaults()
	if err = c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config file '%s': %w", configFilePath, err)
	}
	return c, nil
}

func initConfig(interactive bool) (Config, error) {
	c := initialConfig()
	if interactive {
		err := guidedInitialization(&c)
		if err != nil {
			return c, fmt.Errorf("could not initialize config interactively: %w", err)
		}
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, c.persist()
}

func (c *Config) persist() error {
	f, err := util.OpenWithParents(configFilePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("could not open config file for writing '%s': %w", configFilePath, err)
	}
	defer f.Close()

	logging.Debugf("Persisting config file to '%s'", configFilePath)
	err = toml.NewEncoder(f).Encode(c)
	if err != nil {
		return fmt.Errorf("could not persist config to file '%s': %w", configFilePath, err)
	}

	return nil
}

func (c *Config) Validate() error {
	if _, err := checksum.ParseAlgorithm(c.Algorithm); err != nil {
		return err
	}
	if _, err := checksum.ParseFormat(c.Format); err != nil {
		return err
	}
	if c.BlockSize < 0 {
		return fmt.Errorf("block_size must not be negative, got %d", c.BlockSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	for _, pattern := range c.Ignore {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid ignore pattern '%s': %w", pattern, err)
		}
	}
	return nil
}

// HashAlgorithm returns the configured algorithm; Validate has already
// rejected unknown names for loaded configs.
func (c *Config) HashAlgorithm() checksum.Algorithm {
	a, err := checksum.ParseAlgorithm(c.Algorithm)
	if err != nil {
		return checksum.DefaultAlgorithm
	}
	return a
}

func (c *Config) DigestFormat() checksum.Format {
	f, err := checksum.ParseFormat(c.Format)
	if err != nil {
		return checksum.FormatHex
	}
	return f
}

func (c *Config) applyDefaults() {
	d := initialConfig()
	if c.Algorithm == "" {
		c.Algorithm = d.Algorithm
	}
	if c.Format == "" {
		c.Format = d.Format
	}
	if c.BlockSize == 0 {
		c.BlockSize = d.BlockSize
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.Ignore == nil {
		c.Ignore = d.Ignore
	}
	if c.WatchDir == "" {
		c.WatchDir = d.WatchDir
	}
	c.WatchDir = util.ExpandHome(c.WatchDir)
	if c.Debounce == 0 {
		c.Debounce = d.Debounce
	}
	if c.DriveFolder == "" {
		c.DriveFolder = d.DriveFolder
	}
}

func initialConfig() Config {
	return Config{
		Algorithm:   string(checksum.DefaultAlgorithm),
		Format:      string(checksum.FormatHex),
		BlockSize:   checksum.DefaultBlockSize,
		Workers:     runtime.NumCPU(),
		Ignore:      append([]string(nil), defaultIgnore...),
		WatchDir:    defaultWatchDir,
		Debounce:    defaultDebounce,
		DriveFolder: "root",
	}
}
