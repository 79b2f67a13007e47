package tuning

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Tuning holds the host timing and optional features. Zero values fall back
// to Defaults.
type Tuning struct {
	TickMs      int    `yaml:"tick_ms" env:"DOMINOES_TICK_MS"`
	RenderMs    int    `yaml:"render_ms" env:"DOMINOES_RENDER_MS"`
	TickLog     bool   `yaml:"tick_log" env:"DOMINOES_TICK_LOG"`
	Sound       bool   `yaml:"sound" env:"DOMINOES_SOUND"`
	ObserveAddr string `yaml:"observe_addr" env:"DOMINOES_OBSERVE_ADDR"`
	SaveFile    string `yaml:"save_file" env:"DOMINOES_SAVE_FILE"`
}

func Defaults() Tuning {
	return Tuning{
		TickMs:   50,
		RenderMs: 17,
		TickLog:  true,
	}
}

// Load reads a YAML file on top of Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.normalize()
	return t, nil
}

// ApplyEnv overrides fields from DOMINOES_* environment variables.
func (t *Tuning) ApplyEnv() error {
	if err := env.Parse(t); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	t.normalize()
	return nil
}

func (t *Tuning) normalize() {
	d := Defaults()
	if t.TickMs <= 0 {
		t.TickMs = d.TickMs
	}
	if t.RenderMs <= 0 {
		t.RenderMs = d.RenderMs
	}
}

func (t Tuning) TickInterval() time.Duration   { return time.Duration(t.TickMs) * time.Millisecond }
func (t Tuning) RenderInterval() time.Duration { return time.Duration(t.RenderMs) * time.Millisecond }
