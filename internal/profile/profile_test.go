package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matheus3301/chatsync/internal/config"
)

func TestPathsFollowHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)

	if got, want := Dir("work"), filepath.Join(home, "profiles", "work"); got != want {
		t.Errorf("Dir(work) = %q, want %q", got, want)
	}
	if got, want := ProfilePath("work"), filepath.Join(home, "profiles", "work", "profile.toml"); got != want {
		t.Errorf("ProfilePath(work) = %q, want %q", got, want)
	}
	if got, want := LogPath("work", "chatsync"), filepath.Join(home, "profiles", "work", "logs", "chatsync.log"); got != want {
		t.Errorf("LogPath = %q, want %q", got, want)
	}
	if got, want := ConfigPath(), filepath.Join(home, "config.toml"); got != want {
		t.Errorf("ConfigPath() = %q, want %q", got, want)
	}
}

func TestDefaultBaseDir(t *testing.T) {
	t.Setenv(HomeEnv, "")
	home, _ := os.UserHomeDir()
	if got, want := BaseDir(), filepath.Join(home, ".chatsync"); got != want {
		t.Errorf("BaseDir() = %q, want %q", got, want)
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	if err := EnsureDir("main"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(LogDir("main"))
	if err != nil {
		t.Fatalf("log dir not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("log dir permission = %o, want 0700", perm)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	withDefault := filepath.Join(dir, "config.toml")
	if err := config.Save(withDefault, &config.Config{DefaultProfile: "work"}); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.toml")

	tests := []struct {
		name   string
		flag   string
		config string
		want   string
	}{
		{"flag wins", "bob", withDefault, "bob"},
		{"config default", "", withDefault, "work"},
		{"fallback", "", missing, DefaultName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.flag, tt.config); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.flag, got, tt.want)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "main", false},
		{"valid with numbers", "work123", false},
		{"valid with hyphen", "my-profile", false},
		{"valid with underscore", "my_profile", false},
		{"valid max length", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", false},
		{"empty", "", true},
		{"uppercase", "Main", true},
		{"dot", "my.profile", true},
		{"too long", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", true},
		{"slash", "../etc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
