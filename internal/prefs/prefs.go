// Package prefs persists UI view state (filters, sort order, view mode, page
// size) to a TOML file between sessions. Entity data is never persisted here;
// the API is the source of truth for entities and the snapshot cache covers
// outages.
//
// Loading merges the persisted keys over the defaults, so a file written by
// an older build with missing keys still loads cleanly.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Prefs is the persisted view state.
type Prefs struct {
	ViewMode        string `toml:"view_mode"` // list, board, calendar
	SortKey         string `toml:"sort_key"`
	SortDescending  bool   `toml:"sort_descending"`
	PageSize        int    `toml:"page_size"`
	IncludeArchived bool   `toml:"include_archived"`
	NameQuery       string `toml:"name_query"`
	SelectedProject string `toml:"selected_project"`
}

// Default returns the preferences used when nothing is persisted.
func Default() Prefs {
	return Prefs{
		ViewMode: "list",
		SortKey:  "updated_at",
		PageSize: 25,
	}
}

// Load reads the preferences file at path, merging persisted keys over the
// defaults. A missing file is not an error; the defaults are returned.
func Load(path string) (Prefs, error) {
	p := Default()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("failed to read preferences: %w", err)
	}

	// Decoding into the default-initialized struct leaves absent keys at
	// their default values.
	if _, err := toml.Decode(string(raw), &p); err != nil {
		return Default(), fmt.Errorf("failed to parse preferences: %w", err)
	}
	p.normalize()
	return p, nil
}

// Save writes the preferences to path, creating the parent directory if
// needed.
func Save(path string, p Prefs) error {
	p.normalize()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(p); err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	return nil
}

// normalize clamps out-of-range values back to the defaults.
func (p *Prefs) normalize() {
	switch p.ViewMode {
	case "list", "board", "calendar":
	default:
		p.ViewMode = Default().ViewMode
	}
	if p.PageSize <= 0 {
		p.PageSize = Default().PageSize
	}
}
