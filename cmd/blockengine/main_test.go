package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockengine/internal/config"
	"blockengine/internal/host"
	"blockengine/internal/scheduler"
)

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "enemy_chaser", toSnakeCase("EnemyChaser"))
	assert.Equal(t, "spin", toSnakeCase("Spin"))
}

func TestTemplatesRunClean(t *testing.T) {
	for name, tmpl := range map[string]string{"script": scriptTmpl, "test": testTmpl} {
		t.Run(name, func(t *testing.T) {
			h, err := host.New(host.Options{Config: config.Default(), Clock: scheduler.NewVirtualClock()})
			require.NoError(t, err)
			defer h.Close()

			require.NoError(t, h.RunSource("Spinner", strings.ReplaceAll(tmpl, "{{.Name}}", "Spinner")))
			require.NoError(t, h.RunToIdle(context.Background()))
			assert.Empty(t, h.Failures())
		})
	}
}

func TestCmdNewWritesSkeleton(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, 0, cmdNew([]string{"-config", "", "-dir", dir, "EnemyChaser"}))

	data, err := os.ReadFile(filepath.Join(dir, "enemy_chaser.lua"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `part.Name = "EnemyChaser"`)

	assert.Equal(t, 1, cmdNew([]string{"-config", "", "-dir", dir, "EnemyChaser"}), "existing file")
	assert.Equal(t, 2, cmdNew([]string{"-config", "", "-dir", dir, "lower"}))
}
