package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/veneer"
	"github.com/aretw0/veneer/pkg/adapters/memory"
	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/transforms"
)

var testKey = hex.EncodeToString(bytes.Repeat([]byte{9}, transforms.KeySize))

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "veneer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("Full File", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, `
adapter: fs
location: data
format: yaml
compact: true
scope: "secrets/**"
encrypt:
  key: `+testKey+`
  fields: [pin]
compress:
  min_size: 64
  fields: [body]
`)
		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, veneer.AdapterFS, cfg.Adapter)
		assert.Equal(t, filepath.Join(dir, "data"), cfg.Location)
		assert.Equal(t, "yaml", cfg.Format)
		assert.True(t, cfg.Compact)
		assert.Equal(t, "secrets/**", cfg.Scope)
		require.NotNil(t, cfg.Encrypt)
		assert.Equal(t, []string{"pin"}, cfg.Encrypt.Fields)
		require.NotNil(t, cfg.Compress)
		assert.Equal(t, 64, cfg.Compress.MinSize)
	})

	t.Run("Defaults", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "adapter: memory\nlocation: scratch\n")
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "scratch", cfg.Location, "non-fs locations are not resolved")
		assert.Nil(t, cfg.Encrypt)

		_, ok, err := cfg.Transform()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Invalid YAML", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "adapter: [unclosed\n")
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestConfigTransform(t *testing.T) {
	ctx := context.Background()

	t.Run("Scoped Encryption", func(t *testing.T) {
		cfg := &Config{Scope: "secrets/**", Encrypt: &EncryptConfig{Key: testKey, Fields: []string{"pin"}}}
		hooks, ok, err := cfg.Transform()
		require.NoError(t, err)
		require.True(t, ok)

		raw := memory.New("cfg")
		defer raw.Close()
		db := veneer.Install(raw, hooks)

		_, err = db.Put(ctx, core.Document{"_id": "secrets/a", "pin": "1234"}, nil)
		require.NoError(t, err)
		_, err = db.Put(ctx, core.Document{"_id": "public/b", "pin": "0000"}, nil)
		require.NoError(t, err)

		stored, err := raw.Get(ctx, "secrets/a", nil)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stored.Doc["pin"].(string), transforms.EncryptedPrefix))

		stored, err = raw.Get(ctx, "public/b", nil)
		require.NoError(t, err)
		assert.Equal(t, "0000", stored.Doc["pin"])

		res, err := db.Get(ctx, "secrets/a", nil)
		require.NoError(t, err)
		assert.Equal(t, "1234", res.Doc["pin"])
	})

	t.Run("Passphrase", func(t *testing.T) {
		cfg := &Config{Encrypt: &EncryptConfig{Passphrase: "correct horse", Salt: "veneer-salt"}}
		_, ok, err := cfg.Transform()
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Invalid Settings", func(t *testing.T) {
		cases := map[string]*Config{
			"no key":      {Encrypt: &EncryptConfig{}},
			"bad hex":     {Encrypt: &EncryptConfig{Key: "zz"}},
			"short key":   {Encrypt: &EncryptConfig{Key: "abcd"}},
			"short salt":  {Encrypt: &EncryptConfig{Passphrase: "p", Salt: "s"}},
			"bad pattern": {Scope: "[", Compress: &CompressConfig{}},
		}
		for name, cfg := range cases {
			t.Run(name, func(t *testing.T) {
				_, _, err := cfg.Transform()
				assert.Error(t, err)
			})
		}
	})
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	putData, putFile = "", ""
	getRev, getRevs, getOpenRevs, getPretty = "", false, false, false
	listJSON, listGlob = false, ""
	adapter, location = "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "location: data\nencrypt:\n  key: "+testKey+"\n  fields: [pin]\n")

	out := execute(t, "--config", path, "put", "card", "--data", `{"pin":"1234","owner":"ada"}`)
	var res core.WriteResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.OK)
	assert.Equal(t, "card", res.ID)

	// 1. Ciphertext on disk
	raw, err := os.ReadFile(filepath.Join(dir, "data", "card.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "1234")
	assert.Contains(t, string(raw), "ada")

	// 2. Plaintext through the CLI
	out = execute(t, "--config", path, "get", "card")
	var doc core.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "1234", doc["pin"])
	assert.Equal(t, res.Rev, doc.Rev())

	// 3. Update without a revision replaces the current one
	execute(t, "--config", path, "put", "card", "--data", `{"pin":"9999"}`)
	out = execute(t, "--config", path, "get", "card")
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "9999", doc["pin"])
	assert.True(t, strings.HasPrefix(doc.Rev(), "2-"))

	// 4. Listing and deletion
	execute(t, "--config", path, "put", "notes/x", "--data", `{}`)
	out = execute(t, "--config", path, "list", "--glob", "notes/**")
	assert.Contains(t, out, "notes/x")
	assert.NotContains(t, out, "card")

	execute(t, "--config", path, "delete", "notes/x")
	out = execute(t, "--config", path, "list")
	assert.NotContains(t, out, "notes/x")

	// 5. Changes
	out = execute(t, "--config", path, "changes")
	assert.Contains(t, out, `"id":"card"`)

	out = execute(t, "version")
	assert.Contains(t, out, "veneer version")
}
