// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	r := DefaultConfig()
	require.False(t, r.Configured())
	require.Equal(t, FTLifetimeInfinite, r.FTLifetime)
	require.NoError(t, r.Validate())
}

func TestValidateRejectsZeroQueryLen(t *testing.T) {
	r := DefaultConfig()
	r.QueryLen = 0
	r.QueryFull = false
	err := r.Validate()
	require.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	r := DefaultConfig()
	c := r.Clone()
	c.CfgID = 9
	require.NotEqual(t, r.CfgID, c.CfgID)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	err := os.WriteFile(path, []byte("cfgid: 3\nupdateperiod: 120\n"), 0o600)
	require.NoError(t, err)

	rec, err := Load(path)
	require.NoError(t, err)
	require.True(t, rec.Configured())
	require.EqualValues(t, 120, rec.UpdatePeriod)
}
