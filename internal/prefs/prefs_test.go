package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func prefsPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "prefs.toml")
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	p, err := Load(prefsPath(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p != Default() {
		t.Errorf("Load() = %+v, want defaults", p)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := prefsPath(t)
	want := Prefs{
		ViewMode:        "board",
		SortKey:         "priority",
		SortDescending:  true,
		PageSize:        50,
		IncludeArchived: true,
		NameQuery:       "website",
		SelectedProject: "proj-1",
	}

	if err := Save(path, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestLoadMergesPartialFileOverDefaults(t *testing.T) {
	path := prefsPath(t)
	partial := `view_mode = "calendar"` + "\n"
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.ViewMode != "calendar" {
		t.Errorf("ViewMode = %q, want calendar", got.ViewMode)
	}
	if got.PageSize != Default().PageSize || got.SortKey != Default().SortKey {
		t.Errorf("absent keys should keep defaults: %+v", got)
	}
}

func TestLoadNormalizesBadValues(t *testing.T) {
	path := prefsPath(t)
	bad := "view_mode = \"spreadsheet\"\npage_size = -3\n"
	if err := os.WriteFile(path, []byte(bad), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.ViewMode != "list" || got.PageSize != 25 {
		t.Errorf("normalization failed: %+v", got)
	}
}

func TestLoadCorruptFileFallsBack(t *testing.T) {
	path := prefsPath(t)
	if err := os.WriteFile(path, []byte("not = [valid"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := Load(path)
	if err == nil {
		t.Errorf("corrupt file should return an error")
	}
	if got != Default() {
		t.Errorf("corrupt file should fall back to defaults, got %+v", got)
	}
}

func TestSaveCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.toml")
	if err := Save(path, Default()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not created: %v", err)
	}
}
