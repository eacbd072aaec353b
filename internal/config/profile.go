package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/matheus3301/chatsync/internal/store"
)

// TokenEnv overrides Identity.Token when set.
const TokenEnv = "CHATSYNC_TOKEN"

// Duration is a time.Duration written as a string ("5s") in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Profile is one ~/.chatsync/profiles/<name>/profile.toml: which service to
// talk to, as whom, and how the sync engine is tuned.
type Profile struct {
	Server   Server   `toml:"server"`
	Identity Identity `toml:"identity"`
	Sync     Sync     `toml:"sync"`
}

type Server struct {
	BaseURL string `toml:"base_url"`
	WSURL   string `toml:"ws_url"`
}

type Identity struct {
	UserID      string     `toml:"user_id"`
	DisplayName string     `toml:"display_name"`
	Role        store.Role `toml:"role"`
	Token       string     `toml:"token,omitempty"`
}

type Sync struct {
	PollInterval   Duration `toml:"poll_interval"`
	ReconnectDelay Duration `toml:"reconnect_delay"`
	DedupTolerance Duration `toml:"dedup_tolerance"`
	Heartbeat      Duration `toml:"heartbeat"`
}

// Defaults returns a profile pointing at a local stub service.
func Defaults() *Profile {
	return &Profile{
		Server: Server{
			BaseURL: "http://127.0.0.1:8080/api",
			WSURL:   "ws://127.0.0.1:8080/ws",
		},
		Identity: Identity{Role: store.RoleCustomer},
		Sync: Sync{
			PollInterval:   Duration{5 * time.Second},
			ReconnectDelay: Duration{3 * time.Second},
			DedupTolerance: Duration{time.Second},
			Heartbeat:      Duration{10 * time.Second},
		},
	}
}

// LoadProfile reads a profile over Defaults and applies the token
// environment override. A missing file yields the defaults.
func LoadProfile(path string) (*Profile, error) {
	p := Defaults()
	if _, err := toml.DecodeFile(path, p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if tok := os.Getenv(TokenEnv); tok != "" {
		p.Identity.Token = tok
	}
	return p, nil
}

// SaveProfile writes p to path.
func SaveProfile(path string, p *Profile) error {
	return writeTOML(path, p)
}

// Validate checks that the profile can drive a sync session.
func (p *Profile) Validate() error {
	var errs []error
	for name, raw := range map[string]string{"server.base_url": p.Server.BaseURL, "server.ws_url": p.Server.WSURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s: invalid url %q", name, raw))
		}
	}
	if p.Identity.UserID == "" {
		errs = append(errs, errors.New("identity.user_id is required"))
	}
	if !p.Identity.Role.Valid() {
		errs = append(errs, fmt.Errorf("identity.role: unknown role %q", p.Identity.Role))
	}
	if p.Sync.PollInterval.Duration <= 0 {
		errs = append(errs, errors.New("sync.poll_interval must be positive"))
	}
	if p.Sync.ReconnectDelay.Duration <= 0 {
		errs = append(errs, errors.New("sync.reconnect_delay must be positive"))
	}
	if p.Sync.DedupTolerance.Duration < 0 {
		errs = append(errs, errors.New("sync.dedup_tolerance must not be negative"))
	}
	if p.Sync.Heartbeat.Duration < 0 {
		errs = append(errs, errors.New("sync.heartbeat must not be negative"))
	}
	return errors.Join(errs...)
}
