package params

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Windows holds one instrument's feature window overrides.
type Windows struct {
	VolWindow int `yaml:"vol_window" json:"vol_window"`
	PctWindow int `yaml:"pct_window" json:"pct_window"`
}

// File is the on-disk shape of a window-parameter file.
type File struct {
	Defaults Windows            `yaml:"defaults" json:"defaults"`
	Tickers  map[string]Windows `yaml:"tickers" json:"tickers"`
}

// Provider resolves per-instrument feature windows, falling back to
// the defaults for instruments without an override. Implements the
// predictor's WindowProvider.
type Provider struct {
	defaults  Windows
	overrides map[string]Windows
}

// NewProvider creates a provider with only defaults.
func NewProvider(volWindow, pctWindow int) *Provider {
	return &Provider{
		defaults:  Windows{VolWindow: volWindow, PctWindow: pctWindow},
		overrides: map[string]Windows{},
	}
}

// Load reads a YAML parameter file. Unknown fields fail immediately:
// a typo in a tuning file should surface at load, not as a silently
// default window.
func Load(path string, defaultVol, defaultPct int) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	p := NewProvider(defaultVol, defaultPct)
	if f.Defaults.VolWindow > 0 {
		p.defaults.VolWindow = f.Defaults.VolWindow
	}
	if f.Defaults.PctWindow > 0 {
		p.defaults.PctWindow = f.Defaults.PctWindow
	}

	for ticker, w := range f.Tickers {
		if w.VolWindow <= 0 || w.PctWindow <= 0 {
			return nil, fmt.Errorf("%s: windows for %s must be positive", path, ticker)
		}
		p.overrides[ticker] = w
	}

	return p, nil
}

// Windows returns the feature windows for one instrument.
func (p *Provider) Windows(ticker string) (int, int) {
	if w, ok := p.overrides[ticker]; ok {
		return w.VolWindow, w.PctWindow
	}
	return p.defaults.VolWindow, p.defaults.PctWindow
}
