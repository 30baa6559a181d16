/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package genres holds the genre catalog and the per-genre loudness
// thresholds used to judge mix readiness.
package genres

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultProfileKey is used when a project has no genre.
const DefaultProfileKey = "minimal_deep_tech"

//go:embed catalog.yaml
var catalogYAML []byte

// Genre is one selectable genre.
type Genre struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// ModeThresholds are the loudness and match thresholds for one mix mode.
type ModeThresholds struct {
	LUFSMin    float64 `yaml:"lufs_min" json:"lufs_min"`
	LUFSMax    float64 `yaml:"lufs_max" json:"lufs_max"`
	ReadyMatch float64 `yaml:"ready_match" json:"ready_match"`
	OKMatch    float64 `yaml:"ok_match" json:"ok_match"`
}

// Profile groups master and premaster thresholds for a genre.
type Profile struct {
	Label     string         `yaml:"label" json:"label"`
	Master    ModeThresholds `yaml:"master" json:"master"`
	Premaster ModeThresholds `yaml:"premaster" json:"premaster"`
}

// Mode returns the thresholds for "master" or "premaster". Anything other
// than premaster is treated as master.
func (p Profile) Mode(mode string) ModeThresholds {
	if mode == "premaster" {
		return p.Premaster
	}
	return p.Master
}

// Catalog is the parsed genre catalog.
type Catalog struct {
	Genres   []Genre            `yaml:"genres"`
	Profiles map[string]Profile `yaml:"profiles"`

	index map[string]int
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse genre catalog: %w", err)
	}
	if _, ok := c.Profiles["default"]; !ok {
		return nil, fmt.Errorf("genre catalog: missing default profile")
	}
	c.index = make(map[string]int, len(c.Genres))
	for i := range c.Genres {
		g := &c.Genres[i]
		if g.ID == "" {
			return nil, fmt.Errorf("genre catalog: entry %d has no id", i)
		}
		if g.Label == "" {
			g.Label = FormatLabel(g.ID)
		}
		c.index[g.ID] = i
	}
	return &c, nil
}

var builtin = mustParse(catalogYAML)

func mustParse(data []byte) *Catalog {
	c, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the embedded catalog.
func Default() *Catalog { return builtin }

// List returns the genres in display order.
func (c *Catalog) List() []Genre {
	out := make([]Genre, len(c.Genres))
	copy(out, c.Genres)
	return out
}

// IDs returns the genre ids in display order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.Genres))
	for i, g := range c.Genres {
		out[i] = g.ID
	}
	return out
}

// Valid reports whether id is a catalog genre.
func (c *Catalog) Valid(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Label returns the display label for id, formatting unknown ids.
func (c *Catalog) Label(id string) string {
	if id == "" {
		return ""
	}
	if i, ok := c.index[id]; ok {
		return c.Genres[i].Label
	}
	return FormatLabel(id)
}

// Profile returns the thresholds for a genre, or the default profile.
func (c *Catalog) Profile(key string) Profile {
	if p, ok := c.Profiles[key]; ok && key != "" {
		return p
	}
	return c.Profiles["default"]
}

// FormatLabel turns "deep_house" into "Deep house".
func FormatLabel(id string) string {
	pretty := strings.ReplaceAll(id, "_", " ")
	if pretty == "" {
		return ""
	}
	return strings.ToUpper(pretty[:1]) + pretty[1:]
}
