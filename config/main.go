// Package config loads layouts and process settings.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"nyiyui.ca/hato/senro/tal"
	"nyiyui.ca/hato/senro/tal/layout"
)

//go:embed demo.json
var demoJSON []byte

// Config is a complete layout: track, interlocking and trains.
type Config struct {
	Segments []layout.Segment `json:"segments"`
	Switches []tal.Switch     `json:"switches"`
	Signals  []tal.Signal     `json:"signals"`
	Trains   []tal.TrainConf  `json:"trains"`
}

// Load decodes a Config. Unknown fields are rejected.
func Load(r io.Reader) (Config, error) {
	var c Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("decode layout: %w", err)
	}
	return c, nil
}

func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	c, err := Load(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Demo returns the built-in demo layout.
func Demo() Config {
	c, err := Load(bytes.NewReader(demoJSON))
	if err != nil {
		panic(fmt.Sprintf("embedded demo layout: %s", err))
	}
	return c
}

// Build checks c and makes a Guide from it.
func (c Config) Build(carryOverflow bool) (*tal.Guide, error) {
	y, err := layout.NewGraph(c.Segments)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	il, err := tal.NewInterlock(y, c.Switches, c.Signals)
	if err != nil {
		return nil, fmt.Errorf("interlock: %w", err)
	}
	g, err := tal.NewGuide(tal.GuideConf{
		Layout:        y,
		Interlock:     il,
		Trains:        c.Trains,
		CarryOverflow: carryOverflow,
	})
	if err != nil {
		return nil, fmt.Errorf("trains: %w", err)
	}
	return g, nil
}
