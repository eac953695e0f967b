// Package config loads the proxy's sectioned YAML configuration:
// remote engine descriptors, local/relay engine launch settings, pipe
// policy knobs and the log folder.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Engine  EngineSection `yaml:"engine"`
	Local   LocalSection  `yaml:"local"`
	Ikatago RelaySection  `yaml:"ikatago"`
	Pipe    PipeSection   `yaml:"pipe"`
	Log     LogSection    `yaml:"log"`
}

// EngineSection holds data_folder plus one key per remote engine id whose
// value is "host/port/username/password".
type EngineSection struct {
	DataFolder string
	Remotes    map[string]string
}

// UnmarshalYAML accepts a flat mapping where data_folder coexists with
// arbitrary remote-id keys.
func (e *EngineSection) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	e.Remotes = make(map[string]string)
	for k, v := range raw {
		if k == "data_folder" {
			e.DataFolder = v
			continue
		}
		e.Remotes[k] = v
	}
	return nil
}

// Remote is a parsed remote engine descriptor.
type Remote struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Remote looks up and parses the descriptor for a remote engine id.
func (e EngineSection) Remote(id string) (Remote, error) {
	raw, ok := e.Remotes[id]
	if !ok {
		return Remote{}, fmt.Errorf("no engine %q in configuration", id)
	}
	parts := strings.Split(raw, "/")
	if len(parts) != 4 {
		return Remote{}, fmt.Errorf("engine %q: want host/port/username/password, got %q", id, raw)
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return Remote{}, fmt.Errorf("engine %q: bad port %q: %w", id, parts[1], err)
	}
	return Remote{Host: parts[0], Port: port, Username: parts[2], Password: parts[3]}, nil
}

type LocalSection struct {
	KatagoFolder  string `yaml:"katago_folder"`
	Exe           string `yaml:"exe"`
	GTPConfigFile string `yaml:"gtp_config_file"`
	Model         string `yaml:"model"`
}

type RelaySection struct {
	DataFolder    string `yaml:"data_folder"`
	Exe           string `yaml:"exe"`
	GTPConfigFile string `yaml:"gtp_config_file"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
}

type PipeSection struct {
	LagBuffer         float64 `yaml:"lag_buffer"`
	ResponseTimeLimit float64 `yaml:"response_time_limit"`
	TopVisits         int     `yaml:"top_visits"`
	ResignThreshold   float64 `yaml:"resign_threshold"`
	ResignConsecTurn  int     `yaml:"resign_consec_turn"`
}

type LogSection struct {
	LogFolder string `yaml:"log_folder"`
}

// Load reads and parses the configuration file. An unreadable file is an
// unrecoverable startup failure for the proxy, so missing files are an
// error here, unlike optional per-user settings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Local.Exe == "" {
		c.Local.Exe = "katago.exe"
	}
	if c.Local.Model == "" {
		c.Local.Model = "b40.bin.gz"
	}
	if c.Ikatago.Exe == "" {
		c.Ikatago.Exe = "ikatago.exe"
	}
	if c.Ikatago.Username == "" {
		c.Ikatago.Username = "someone"
	}
	if c.Ikatago.Password == "" {
		c.Ikatago.Password = "hard-to-guess"
	}
	if c.Pipe.LagBuffer == 0 {
		c.Pipe.LagBuffer = 1
	}
	if c.Pipe.ResponseTimeLimit == 0 {
		c.Pipe.ResponseTimeLimit = 5
	}
	if c.Pipe.TopVisits == 0 {
		c.Pipe.TopVisits = 200000
	}
	if c.Pipe.ResignThreshold == 0 {
		c.Pipe.ResignThreshold = 0.1
	}
	if c.Pipe.ResignConsecTurn == 0 {
		c.Pipe.ResignConsecTurn = 3
	}
	if c.Engine.Remotes == nil {
		c.Engine.Remotes = make(map[string]string)
	}
}

// ExpandUser resolves a leading ~ against the current user's home
// directory, mirroring how engine folders are written in config files.
func ExpandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
	}
	return path
}
