package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)
	for _, k := range []string{"API_URL", "SITE_ID", "VISITOR_ID", "ADMIN_TOKEN", "DATA_DIR", "LOG_LEVEL", "DEBUG"} {
		t.Setenv(envPrefix+k, "")
	}
	return home
}

func TestLoadCreatesTemplate(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	path := filepath.Join(home, ".config", "wikichat", "config.toml")
	assert.Equal(t, path, cfg.Path)
	assert.FileExists(t, path)

	assert.Equal(t, "http://localhost:3000", cfg.APIURL)
	assert.Zero(t, cfg.SiteID)
	assert.Len(t, cfg.VisitorID, 36)
	assert.Equal(t, 2*time.Second, cfg.AutosaveDelay)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, filepath.Join(home, ".local", "share", "wikichat"), cfg.DataDir())
	assert.DirExists(t, cfg.DataDir())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	again, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, cfg.VisitorID, again.VisitorID)
}

func TestLoadMintsMissingVisitorID(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte(`api_url = "https://wiki.example.com/"
site_id = 4
data_directory = "`+filepath.Join(home, "data")+`"
autosave_delay = "500ms"
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://wiki.example.com", cfg.APIURL)
	assert.EqualValues(t, 4, cfg.SiteID)
	assert.Equal(t, 500*time.Millisecond, cfg.AutosaveDelay)
	require.NotEmpty(t, cfg.VisitorID)

	fc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.VisitorID, fc.VisitorID)
	assert.Equal(t, "https://wiki.example.com/", fc.APIURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	home := isolate(t)
	t.Setenv("WIKICHAT_API_URL", "https://env.example.com")
	t.Setenv("WIKICHAT_SITE_ID", "9")
	t.Setenv("WIKICHAT_VISITOR_ID", "visitor-env")
	t.Setenv("WIKICHAT_ADMIN_TOKEN", "tok")
	t.Setenv("WIKICHAT_DATA_DIR", filepath.Join(home, "envdata"))
	t.Setenv("WIKICHAT_DEBUG", "1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.APIURL)
	assert.EqualValues(t, 9, cfg.SiteID)
	assert.Equal(t, "visitor-env", cfg.VisitorID)
	assert.Equal(t, "tok", cfg.AdminToken)
	assert.Equal(t, filepath.Join(home, "envdata"), cfg.DataDir())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsInvalid(t *testing.T) {
	home := isolate(t)

	tests := map[string]string{
		"bad url":       `api_url = "localhost"`,
		"bad scheme":    `api_url = "ftp://wiki"`,
		"bad delay":     `autosave_delay = "soon"`,
		"zero delay":    `autosave_delay = "0s"`,
		"unknown key":   `colour = "blue"`,
		"not toml":      `api_url = `,
		"negative site": `site_id = -1`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(home, strings.ReplaceAll(name, " ", "_")+".toml")
			require.NoError(t, os.WriteFile(path, []byte("visitor_id = \"v\"\n"+body+"\n"), 0600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	t.Run("bad env site", func(t *testing.T) {
		t.Setenv("WIKICHAT_SITE_ID", "abc")
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)
	t.Setenv("WIKICHAT_TEST_DIR", "sub")

	assert.Equal(t, filepath.Join(home, "x"), ExpandPath("~/x"))
	assert.Equal(t, filepath.Join("/tmp", "sub"), ExpandPath("/tmp/$WIKICHAT_TEST_DIR"))
	assert.Equal(t, "", ExpandPath(""))
}

func TestConfigDirHonorsXDG(t *testing.T) {
	home := isolate(t)
	assert.Equal(t, filepath.Join(home, ".config", "wikichat", "config.toml"), GetSettingsFilePath())

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	assert.Equal(t, filepath.Join(xdg, "wikichat"), GetConfigDir())

	t.Setenv("XDG_CONFIG_HOME", "relative")
	assert.Equal(t, filepath.Join(home, ".config", "wikichat"), GetConfigDir())
}

func TestEnsureDataDirPermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, EnsureDataDirPermissions(dir))
	require.NoError(t, os.Chmod(dir, 0755))
	require.NoError(t, EnsureDataDirPermissions(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0600))
	assert.Error(t, EnsureDataDirPermissions(file))
}

func TestKeyBindings(t *testing.T) {
	kb := NewKeyBindings(map[string]string{"reset": " Ctrl+N ", "bogus": "x", "copy_reply": ""})

	assert.Equal(t, "ctrl+n", kb.GetActionKey("reset"))
	assert.Equal(t, "ctrl+y", kb.GetActionKey("copy_reply"))
	assert.Equal(t, "enter", kb.GetActionKey("send"))
	assert.Empty(t, kb.GetActionKey("missing"))

	assert.True(t, kb.Is("ctrl+n", "reset"))
	assert.False(t, kb.Is("ctrl+r", "reset"))
	assert.False(t, kb.Is("", "missing"))

	assert.Equal(t, "Ctrl+N", kb.DisplayActionKey("reset"))
	assert.Equal(t, "Pgup", kb.DisplayActionKey("scroll_up"))
	assert.Equal(t, []string{"bogus"}, kb.UnknownActions())
	assert.Contains(t, Actions(), "threads")

	var nilKB *KeyBindings
	assert.Equal(t, "esc", nilKB.GetActionKey("cancel"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{LogLevel: "warn", LogFormat: "json"}, &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("thread_id", "t1").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"thread_id":"t1"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestNewLoggerDefaultsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{LogLevel: "loud", LogFormat: "console"}, &buf)

	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestOpenLogFile(t *testing.T) {
	dir := t.TempDir()
	f, err := OpenLogFile(dir)
	require.NoError(t, err)
	defer f.Close()

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
