package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geolife/importer/internal/app"
	"github.com/geolife/importer/internal/buildinfo"
	"github.com/geolife/importer/internal/conf"
	"github.com/geolife/importer/internal/pipeline"
	"github.com/geolife/importer/internal/testutil"
)

// run executes one command line the way main does and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	v, err := conf.New()
	require.NoError(t, err)

	appCtx := app.NewContext(&buildinfo.Context{Version: "v0.0.0-test"})
	root := RootCommand(appCtx, v)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err = root.ExecuteContext(context.Background())
	require.NoError(t, appCtx.Close())
	return out.String(), err
}

func TestCommands_SQLiteLifecycle(t *testing.T) {
	t.Setenv("GEOLIFE_LOG_LEVEL", "error")
	dataset := testutil.WriteDir(t, testutil.StandardFixture())
	db := filepath.Join(t.TempDir(), "geolife.db")
	common := []string{"--driver", "sqlite", "--sqlite-path", db, "--dataset", dataset, "--chunk-size", "16"}

	out, err := run(t, append([]string{"seed"}, common...)...)
	require.ErrorIs(t, err, pipeline.ErrPrecondition, out)

	out, err = run(t, append([]string{"migrate"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "relational schema ready")

	out, err = run(t, append([]string{"seed"}, common...)...)
	require.NoError(t, err)
	assert.Regexp(t, `track points\s+50`, out)
	assert.Regexp(t, `labeled activities\s+1`, out)
	assert.Regexp(t, `skipped files\s+0`, out)

	out, err = run(t, append([]string{"status"}, common...)...)
	require.NoError(t, err)
	assert.Regexp(t, `state\s+schema-ready`, out)
	assert.Regexp(t, `activities\s+3`, out)

	_, err = run(t, append([]string{"wipe"}, common...)...)
	require.NoError(t, err)
	out, err = run(t, append([]string{"status"}, common...)...)
	require.NoError(t, err)
	assert.Regexp(t, `state\s+uninitialized`, out)
}

func TestSeedWithMigrateFlag(t *testing.T) {
	t.Setenv("GEOLIFE_LOG_LEVEL", "error")
	dataset := testutil.WriteDir(t, testutil.StandardFixture())
	db := filepath.Join(t.TempDir(), "geolife.db")

	out, err := run(t, "seed", "--migrate", "--driver", "sqlite", "--sqlite-path", db, "--dataset", dataset)
	require.NoError(t, err, out)
	assert.Regexp(t, `users\s+2`, out)
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.yaml")

	out, err := run(t, "config", "init", "--output", target, "--sink", "document")
	require.NoError(t, err)
	assert.Contains(t, out, target)

	v, err := conf.New()
	require.NoError(t, err)
	settings, err := conf.Load(v, target)
	require.NoError(t, err)
	assert.Equal(t, conf.SinkDocument, settings.Sink)

	_, err = run(t, "config", "init", "--output", target)
	require.Error(t, err, "existing file must not be overwritten without --force")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "v0.0.0-test")
}

func TestInvalidSettingsRejected(t *testing.T) {
	_, err := run(t, "status", "--sink", "graph")
	require.Error(t, err)
}
