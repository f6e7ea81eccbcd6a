package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attbot/internal/schedule"
)

const sampleTOML = `
retry = 5
delay_ms = 1500
points = ["00:00:00", "06:00:00"]

[email]
enable = true
host = "smtp.example.com"
port = 587
account = "bot@example.com"
password = "secret"

[cache_api]
url = "https://cache.example.com/api"
token = "tok"
report = true

[[users]]
name = "alice"
password = "pwd"
email = "alice@example.com"

[[users]]
enable = false
name = "bob"
password = "pwd2"
retry = 1
delay_ms = 200
points = ["12:30"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFullFile(t *testing.T) {
	f, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, 5, f.Retry)
	assert.Equal(t, uint64(DefaultOffset), f.Offset())
	assert.True(t, f.Email.Enable)
	assert.True(t, f.CacheAPI.Report)
	require.Len(t, f.Users, 2)

	assert.True(t, f.Users[0].Enabled())
	assert.False(t, f.Users[1].Enabled())
	assert.Len(t, f.EnabledUsers(), 1)

	require.Len(t, f.Users[1].Points, 1)
	assert.Equal(t, schedule.TimeOfDay{Hour: 12, Minute: 30}, f.Users[1].Points[0])
}

func TestPerUserOverrides(t *testing.T) {
	f, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	alice, bob := f.Users[0], f.Users[1]

	assert.Equal(t, 5, f.RetryFor(alice))
	assert.Equal(t, 1, f.RetryFor(bob))

	assert.Equal(t, 1500*time.Millisecond, f.DelayFor(alice))
	// bob's 200ms sits below the floor and gets clamped.
	assert.Equal(t, time.Duration(MinDelayMS)*time.Millisecond, f.DelayFor(bob))

	assert.Len(t, f.PointsFor(alice), 2)
	assert.Len(t, f.PointsFor(bob), 1)
}

func TestLoadRejectsEmptyUsers(t *testing.T) {
	_, err := Load(writeConfig(t, `retry = 3`))
	assert.Error(t, err)
}

func TestLoadRejectsMissingPassword(t *testing.T) {
	_, err := Load(writeConfig(t, "[[users]]\nname = \"alice\"\n"))
	assert.Error(t, err)
}

func TestAnswerOffsetOverride(t *testing.T) {
	f, err := Load(writeConfig(t, "answer_offset = 0\n[[users]]\nname = \"a\"\npassword = \"b\"\n"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), f.Offset())
}

func TestWriteToRoundTrip(t *testing.T) {
	orig := Default()
	orig.Users = []User{{Name: "alice", Password: "pwd"}}

	var buf bytes.Buffer
	require.NoError(t, orig.WriteTo(&buf))

	f, err := Load(writeConfig(t, buf.String()))
	require.NoError(t, err)
	assert.Equal(t, orig.Points, f.Points)
	assert.Equal(t, "alice", f.Users[0].Name)
}

func TestInstallRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	require.NoError(t, Install(path, false))
	assert.Error(t, Install(path, false))
	assert.NoError(t, Install(path, true))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Users, 1)
}

func TestUninstallRemovesCookies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, Install(path, false))
	cookie := filepath.Join(dir, "alice_cookie.json")
	require.NoError(t, os.WriteFile(cookie, []byte("[]"), 0o600))

	require.NoError(t, Uninstall(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(cookie)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadInfraDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("STATUS_ADDR", "")

	infra := LoadInfra()
	assert.Equal(t, "localhost:6379", infra.RedisAddr)
	assert.Equal(t, ":8081", infra.StatusAddr)
	assert.False(t, infra.StatusOn)
}
