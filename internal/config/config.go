package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Documented defaults. Every one of them can be overridden in config.yaml.
const (
	DefaultParentDir     = "~/workspace/AdvancedProgramming"
	DefaultRemoteUser    = "ks3343"
	DefaultRemoteHost    = "clac.cs.columbia.edu"
	DefaultRemoteParent  = "~/cs3157"
	DefaultSkeletonDir   = "/home/jae/cs3157-pub"
	DefaultSubmitCommand = "/home/w3157/submit/submit-lab"
	DefaultAuthorName    = "Khyber Sen"
	DefaultAuthorUNI     = "ks3343"
	DefaultTheme         = "mocha"
	DefaultLogLevel      = "info"
	DefaultDebounce      = 2 * time.Second
)

type Config struct {
	ParentDir string       `yaml:"parent_dir"`
	Remote    RemoteConfig `yaml:"remote"`
	Author    AuthorConfig `yaml:"author"`
	Theme     string       `yaml:"theme"`
	LogLevel  string       `yaml:"log_level"`
	LogFile   string       `yaml:"log_file"`
	Watch     WatchConfig  `yaml:"watch"`
}

// RemoteConfig describes the grading server. Paths here are interpreted on
// the remote host and are never expanded locally.
type RemoteConfig struct {
	Username      string `yaml:"username"`
	Host          string `yaml:"host"`
	ParentDir     string `yaml:"parent_dir"`
	SkeletonDir   string `yaml:"skeleton_dir"`
	SubmitCommand string `yaml:"submit_command"`
}

type AuthorConfig struct {
	Name string `yaml:"name"`
	UNI  string `yaml:"uni"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

func DefaultConfig() Config {
	return Config{
		ParentDir: DefaultParentDir,
		Remote: RemoteConfig{
			Username:      DefaultRemoteUser,
			Host:          DefaultRemoteHost,
			ParentDir:     DefaultRemoteParent,
			SkeletonDir:   DefaultSkeletonDir,
			SubmitCommand: DefaultSubmitCommand,
		},
		Author: AuthorConfig{
			Name: DefaultAuthorName,
			UNI:  DefaultAuthorUNI,
		},
		Theme:    DefaultTheme,
		LogLevel: DefaultLogLevel,
		Watch:    WatchConfig{Debounce: DefaultDebounce},
	}
}

func Load() (Config, error) {
	return LoadFrom(getConfigPath())
}

// LoadFromDir loads config.yaml from the given directory.
func LoadFromDir(dir string) (Config, error) {
	return LoadFrom(filepath.Join(dir, "config.yaml"))
}

func LoadFrom(configPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing %s: %w", configPath, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills fields that a partial config file left empty.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.ParentDir == "" {
		c.ParentDir = d.ParentDir
	}
	if c.Remote.Username == "" {
		c.Remote.Username = d.Remote.Username
	}
	if c.Remote.Host == "" {
		c.Remote.Host = d.Remote.Host
	}
	if c.Remote.ParentDir == "" {
		c.Remote.ParentDir = d.Remote.ParentDir
	}
	if c.Remote.SkeletonDir == "" {
		c.Remote.SkeletonDir = d.Remote.SkeletonDir
	}
	if c.Remote.SubmitCommand == "" {
		c.Remote.SubmitCommand = d.Remote.SubmitCommand
	}
	if c.Author.Name == "" {
		c.Author.Name = d.Author.Name
	}
	if c.Author.UNI == "" {
		c.Author.UNI = d.Author.UNI
	}
	if c.Theme == "" {
		c.Theme = d.Theme
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = d.Watch.Debounce
	}
}

// ResolvedParentDir returns ParentDir with a leading ~ expanded.
func (c *Config) ResolvedParentDir() string {
	return ExpandHome(c.ParentDir)
}

// ResolvedLogFile returns the log file path, defaulting to the XDG state dir.
func (c *Config) ResolvedLogFile() string {
	if c.LogFile != "" {
		return ExpandHome(c.LogFile)
	}
	return filepath.Join(getStateDir(), "labkit.log")
}

// Marshal renders the effective configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Dir returns the configuration directory, honouring an explicit override.
func Dir(override string) string {
	if override != "" {
		return override
	}
	return filepath.Dir(getConfigPath())
}

func getConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "labkit", "config.yaml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "labkit", "config.yaml")
	}

	return filepath.Join(home, ".config", "labkit", "config.yaml")
}

func getStateDir() string {
	if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
		return filepath.Join(xdgState, "labkit")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".local", "state", "labkit")
	}

	return filepath.Join(home, ".local", "state", "labkit")
}
