package devseed_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/odata_sdk_go/internal/devseed"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "seed.json", `[{"kind":"accounts","id":"1","data":{"Name":"Acme","Employees":12}}]`)

	entries, err := devseed.LoadResourceSeed(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "accounts", entries[0].Kind)
	assert.Equal(t, "1", entries[0].ID)
	assert.Equal(t, "Acme", entries[0].Data["Name"])
	assert.Equal(t, float64(12), entries[0].Data["Employees"])
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "seed.yaml", `
- kind: accounts
  id: "2"
  data:
    Name: Globex
    Address:
      City: Springfield
- kind: contacts
  data:
    Name: Homer
`)

	entries, err := devseed.LoadResourceSeed(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	addr, ok := entries[0].Data["Address"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Springfield", addr["City"])
	assert.Empty(t, entries[1].ID)
}

func TestLoadErrors(t *testing.T) {
	_, err := devseed.LoadResourceSeed(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = devseed.LoadResourceSeed(writeFile(t, "bad.json", `{`))
	assert.Error(t, err)

	_, err = devseed.ParseJSON([]byte(`[{"id":"1"}]`))
	assert.ErrorContains(t, err, "missing kind")
}
