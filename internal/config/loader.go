package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// Store implements domain.ConfigStore backed by a file that is reread on every Load.
type Store struct {
	path      string
	overrides Overrides
	fs        domain.FileSystemManager
	logger    *zap.Logger

	mu           sync.Mutex
	lastProblem  string // last reported load error, to avoid repeating it every cycle
	lastWarnings string
}

// NewStore creates a config store for path. path may use ~.
func NewStore(path string, overrides Overrides, fs domain.FileSystemManager, logger *zap.Logger) *Store {
	return &Store{
		path:      fs.ExpandHome(path),
		overrides: overrides,
		fs:        fs,
		logger:    logger,
	}
}

// Path returns the expanded config file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns a fresh snapshot. It never fails: a missing or malformed file
// yields defaults and a warning.
func (s *Store) Load() domain.Config {
	cfg, warnings, err := s.read()
	if err != nil {
		cfg = Defaults()
		s.reportProblem(err)
	} else {
		s.reportProblem(nil)
	}

	s.overrides.apply(&cfg)
	warnings = append(warnings, normalize(&cfg)...)
	s.reportWarnings(warnings)

	cfg.LogFilePath = s.fs.ExpandHome(cfg.LogFilePath)

	return cfg
}

// IsWithinAllowedTimeslot implements domain.ConfigStore.
func (s *Store) IsWithinAllowedTimeslot(now time.Time, cfg domain.Config) bool {
	return IsWithinAllowedTimeslot(now, cfg)
}

// read decodes the file based on its extension.
func (s *Store) read() (domain.Config, []error, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Config{}, nil, fmt.Errorf("%w: %s not found", domain.ErrConfigLoad, s.path)
		}
		return domain.Config{}, nil, fmt.Errorf("%w: read: %v", domain.ErrConfigLoad, err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &fc); err != nil {
			return domain.Config{}, nil, fmt.Errorf("%w: decode TOML: %v", domain.ErrConfigLoad, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return domain.Config{}, nil, fmt.Errorf("%w: decode YAML: %v", domain.ErrConfigLoad, err)
		}
	default:
		obj, err := validateJSON(data)
		if err != nil {
			return domain.Config{}, nil, fmt.Errorf("%w: %v", domain.ErrConfigLoad, err)
		}
		if unknown := unknownKeys(obj); len(unknown) > 0 {
			s.logger.Debug("ignoring unknown config keys", zap.Strings("keys", unknown))
		}
		if err := json.Unmarshal(data, &fc); err != nil {
			return domain.Config{}, nil, fmt.Errorf("%w: decode JSON: %v", domain.ErrConfigLoad, err)
		}
	}

	cfg := Defaults()
	warnings := fc.apply(&cfg)
	return cfg, warnings, nil
}

// normalize repairs inverted bounds instead of rejecting the config.
func normalize(cfg *domain.Config) []error {
	var warnings []error
	if cfg.MaxDelay < cfg.MinDelay {
		warnings = append(warnings, fmt.Errorf("max delay %s below min delay %s, using min delay", cfg.MaxDelay, cfg.MinDelay))
		cfg.MaxDelay = cfg.MinDelay
	}
	if cfg.InterCycleMax < cfg.InterCycleMin {
		warnings = append(warnings, fmt.Errorf("inter-cycle max %s below min %s, using min", cfg.InterCycleMax, cfg.InterCycleMin))
		cfg.InterCycleMax = cfg.InterCycleMin
	}
	return warnings
}

// reportProblem logs a load error once per distinct problem.
func (s *Store) reportProblem(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		if s.lastProblem != "" {
			s.logger.Info("config loaded", zap.String("path", s.path))
		}
		s.lastProblem = ""
		return
	}

	if err.Error() == s.lastProblem {
		return
	}
	s.lastProblem = err.Error()
	s.logger.Warn("using default config", zap.String("path", s.path), zap.Error(err))
}

// reportWarnings logs skipped or repaired entries only when the set of warnings changes.
func (s *Store) reportWarnings(warnings []error) {
	msgs := make([]string, 0, len(warnings))
	for _, w := range warnings {
		msgs = append(msgs, w.Error())
	}
	key := strings.Join(msgs, "\n")

	s.mu.Lock()
	defer s.mu.Unlock()
	if key == s.lastWarnings {
		return
	}
	s.lastWarnings = key
	for _, w := range warnings {
		s.logger.Warn("config warning", zap.String("path", s.path), zap.Error(w))
	}
}

func unknownKeys(obj map[string]any) []string {
	var unknown []string
	for k := range obj {
		if !knownKeys[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// Ensure Store implements domain.ConfigStore.
var _ domain.ConfigStore = (*Store)(nil)
