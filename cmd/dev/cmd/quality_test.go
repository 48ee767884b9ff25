package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckMaps(t *testing.T) {
	require.NoError(t, CheckMaps("../../../regmap/maps"))

	dir := t.TempDir()
	broken := "name: broken\nframing: i2c8\nregisters:\n  - {name: R, address: 0, width: 1, access: rw, fields: [{name: a, bits: 3}]}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(broken), 0o600))
	err := CheckMaps(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}
