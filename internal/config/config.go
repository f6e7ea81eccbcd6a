// Package config loads the TOML bot configuration and the environment-driven
// infrastructure settings.
package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"attbot/internal/schedule"
)

const (
	// FileName is the config file looked up next to the binary or under
	// the directory named by ATTBOT_CONFIG_DIR.
	FileName = "attbot.toml"

	// MinDelayMS is the floor for the post-point delay padding. Firing
	// exactly on the tick tends to race the server-side rollover.
	MinDelayMS = 1000

	// DefaultRetry is the attempt budget per scheduled point.
	DefaultRetry = 3

	// DefaultOffset is the accepted byte-length difference between a
	// candidate poster and the quiz poster.
	DefaultOffset = 6
)

// User is one account the bot checks in for.
type User struct {
	Enable   *bool  `toml:"enable,omitempty"`
	Name     string `toml:"name"`
	Password string `toml:"password"`
	Email    string `toml:"email,omitempty"`

	// Per-user overrides; zero values fall back to the top-level settings.
	Retry   int                  `toml:"retry,omitempty"`
	DelayMS int                  `toml:"delay_ms,omitempty"`
	Points  []schedule.TimeOfDay `toml:"points,omitempty"`
}

// Enabled reports whether this user takes part in scheduled runs. Absent
// means enabled.
func (u User) Enabled() bool {
	return u.Enable == nil || *u.Enable
}

// Email configures outcome notifications over SMTP.
type Email struct {
	Enable   bool   `toml:"enable"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Account  string `toml:"account"`
	Password string `toml:"password"`
	From     string `toml:"from,omitempty"`
}

// CacheAPI configures the shared candidate cache service.
type CacheAPI struct {
	URL    string `toml:"url"`
	Token  string `toml:"token"`
	Report bool   `toml:"report"`
}

// File is the on-disk TOML document.
type File struct {
	SiteURL      string               `toml:"site_url,omitempty"`
	MetadataURL  string               `toml:"metadata_url,omitempty"`
	AnswerOffset *uint64              `toml:"answer_offset,omitempty"`
	Retry        int                  `toml:"retry,omitempty"`
	DelayMS      int                  `toml:"delay_ms,omitempty"`
	Points       []schedule.TimeOfDay `toml:"points,omitempty"`

	Email    Email    `toml:"email,omitempty"`
	CacheAPI CacheAPI `toml:"cache_api,omitempty"`

	Users []User `toml:"users"`
}

// Infra holds process-level settings read from the environment, kept apart
// from the user-editable TOML file.
type Infra struct {
	DatabaseURL string
	RedisAddr   string
	RedisUse    bool
	StatusAddr  string
	StatusOn    bool
	CookieDir   string
}

// Default returns a File with the stock schedule and knobs filled in.
func Default() File {
	return File{
		Retry:   DefaultRetry,
		DelayMS: MinDelayMS,
		Points: []schedule.TimeOfDay{
			{Hour: 0, Minute: 0, Second: 0},
			{Hour: 6, Minute: 0, Second: 0},
		},
	}
}

// Offset returns the configured answer offset or the default.
func (f File) Offset() uint64 {
	if f.AnswerOffset != nil {
		return *f.AnswerOffset
	}
	return DefaultOffset
}

// RetryFor resolves the attempt budget for a user.
func (f File) RetryFor(u User) int {
	if u.Retry > 0 {
		return u.Retry
	}
	if f.Retry > 0 {
		return f.Retry
	}
	return DefaultRetry
}

// DelayFor resolves the post-point delay for a user, clamped to the floor.
func (f File) DelayFor(u User) time.Duration {
	ms := u.DelayMS
	if ms == 0 {
		ms = f.DelayMS
	}
	if ms < MinDelayMS {
		ms = MinDelayMS
	}
	return time.Duration(ms) * time.Millisecond
}

// PointsFor resolves the schedule for a user.
func (f File) PointsFor(u User) []schedule.TimeOfDay {
	if len(u.Points) > 0 {
		return u.Points
	}
	if len(f.Points) > 0 {
		return f.Points
	}
	return Default().Points
}

// EnabledUsers filters the user list to those taking part in scheduled runs.
func (f File) EnabledUsers() []User {
	out := make([]User, 0, len(f.Users))
	for _, u := range f.Users {
		if u.Enabled() {
			out = append(out, u)
		}
	}
	return out
}

// Validate rejects configs the bot cannot act on.
func (f File) Validate() error {
	if len(f.Users) == 0 {
		return errors.New("config: no users defined")
	}
	for i, u := range f.Users {
		if u.Name == "" || u.Password == "" {
			return fmt.Errorf("config: user %d missing name or password", i)
		}
	}
	return nil
}

// Dir returns the directory the config file lives in: ATTBOT_CONFIG_DIR
// when set, otherwise the executable's directory.
func Dir() (string, error) {
	if dir := os.Getenv("ATTBOT_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("config: locate executable: %w", err)
	}
	return filepath.Dir(exe), nil
}

// Path returns the full path of the config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads and validates the TOML file at path.
func Load(path string) (File, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	f := Default()
	if err := toml.Unmarshal(body, &f); err != nil {
		return File{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// WriteTo serializes the file as TOML.
func (f File) WriteTo(w io.Writer) error {
	return toml.NewEncoder(w).Encode(f)
}

// Install writes a starter config at path. It refuses to overwrite an
// existing file unless force is set.
func Install(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config: %s already exists (use force to overwrite)", path)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	starter := Default()
	starter.Users = []User{{Name: "your-username", Password: "your-password"}}
	return starter.WriteTo(f)
}

// Uninstall removes the config file and any cookie files beside it.
func Uninstall(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config: remove %s: %w", path, err)
	}
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*_cookie.json"))
	if err != nil {
		return nil
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			log.Printf("config: remove %s: %v", m, err)
		}
	}
	return nil
}

// LoadInfra reads process-level settings from the environment.
func LoadInfra() Infra {
	cookieDir, _ := Dir()
	return Infra{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisUse:    boolEnv("REDIS_USE", false),
		StatusAddr:  getEnv("STATUS_ADDR", ":8081"),
		StatusOn:    boolEnv("STATUS_ON", false),
		CookieDir:   getEnv("ATTBOT_COOKIE_DIR", cookieDir),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}
