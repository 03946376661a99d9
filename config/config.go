// Package config holds the project file shared by the design, stimulus and
// run commands.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/design"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/experiment"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/stimulus"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/trials"
)

const DefaultFile = "mlcm.yaml"

type Config struct {
	Design   design.Params      `yaml:"design"`
	Stimulus stimulus.Params    `yaml:"stimulus"`
	MLDS     design.MLDSParams  `yaml:"mlds"`
	Dots     stimulus.DotParams `yaml:"dots"`
	Session  SessionConfig      `yaml:"session"`
}

// SessionConfig controls how a block is presented and where its data goes.
type SessionConfig struct {
	ConditionsDir  string        `yaml:"conditions_dir"`
	StimuliDir     string        `yaml:"stimuli_dir"`
	DataDir        string        `yaml:"data_dir"`
	ImageColumn    string        `yaml:"image_column"`
	ResponseKeys   []string      `yaml:"response_keys"`
	ResponseDelay  time.Duration `yaml:"response_delay"`
	ThanksDuration time.Duration `yaml:"thanks_duration"`
	ImageSize      [2]float64    `yaml:"image_size,flow"`
	NReps          int           `yaml:"n_reps"`
	Method         string        `yaml:"method"`
	Seed           int64         `yaml:"seed"`
	EndLoopKey     string        `yaml:"end_loop_key,omitempty"`
	SaveIncomplete bool          `yaml:"save_incomplete"`
}

func Default() *Config {
	opts := experiment.DefaultOptions()
	return &Config{
		Design:   design.DefaultParams(),
		Stimulus: stimulus.DefaultParams(),
		MLDS:     design.DefaultMLDSParams(),
		Dots:     stimulus.DefaultDotParams(),
		Session: SessionConfig{
			ConditionsDir:  "design",
			StimuliDir:     ".",
			DataDir:        opts.DataDir,
			ImageColumn:    opts.ImageColumn,
			ResponseKeys:   opts.ResponseKeys,
			ResponseDelay:  opts.ResponseDelay,
			ThanksDuration: opts.ThanksDuration,
			ImageSize:      opts.ImageSize,
			NReps:          opts.NReps,
			Method:         "sequential",
			SaveIncomplete: opts.SaveIncomplete,
		},
	}
}

// Load reads a project file over the defaults. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("MLCM_DATA_DIR"); dir != "" {
		c.Session.DataDir = dir
	}
	if dir := os.Getenv("MLCM_STIMULI_DIR"); dir != "" {
		c.Session.StimuliDir = dir
	}
	if s := os.Getenv("MLCM_SEED"); s != "" {
		if seed, err := strconv.ParseInt(s, 10, 64); err == nil {
			c.Session.Seed = seed
			c.Design.Seed = seed
			c.MLDS.Seed = seed
		}
	}
}

func (c *Config) Validate() error {
	if c.Design.Blocks < 1 || c.MLDS.Blocks < 1 {
		return fmt.Errorf("blocks must be positive")
	}
	if c.Design.LumSteps < 2 {
		return fmt.Errorf("design: need at least two luminance steps, got %d", c.Design.LumSteps)
	}
	if len(c.Design.Contexts) == 0 {
		return fmt.Errorf("design: no contexts")
	}
	if c.Session.NReps < 1 {
		return fmt.Errorf("session: n_reps must be positive, got %d", c.Session.NReps)
	}
	if c.Session.ResponseDelay < 0 {
		return fmt.Errorf("session: negative response delay")
	}
	if _, err := trials.ParseMethod(c.Session.Method); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

// Options converts the session section into experiment options. Logger,
// trigger and progress output are left for the caller.
func (c *Config) Options() (experiment.Options, error) {
	method, err := trials.ParseMethod(c.Session.Method)
	if err != nil {
		return experiment.Options{}, err
	}
	s := c.Session
	return experiment.Options{
		ConditionsDir:  s.ConditionsDir,
		StimuliDir:     s.StimuliDir,
		DataDir:        s.DataDir,
		ImageColumn:    s.ImageColumn,
		ResponseKeys:   s.ResponseKeys,
		ResponseDelay:  s.ResponseDelay,
		ThanksDuration: s.ThanksDuration,
		ImageSize:      s.ImageSize,
		NReps:          s.NReps,
		Method:         method,
		Seed:           s.Seed,
		EndLoopKey:     s.EndLoopKey,
		SaveIncomplete: s.SaveIncomplete,
	}, nil
}
