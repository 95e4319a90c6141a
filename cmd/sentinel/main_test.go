package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeSentinel/internal/model"
)

func writeMockConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := "days: 200\n" +
		"states: 2\n" +
		"buy_states: [0]\n" +
		"sell_states: [1]\n" +
		"dataset_dir: " + filepath.Join(dir, "data") + "\n" +
		"model_path: " + filepath.Join(dir, "data", "model.json") + "\n" +
		"log:\n  level: error\n" +
		"data_source:\n  provider: mock\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func execute(args ...string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestBacktestCmd_RejectsNonPositiveCash(t *testing.T) {
	path := writeMockConfig(t)
	err := execute("backtest", "--config", path, "--cash=-5")
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestTrainCmd_RevalidatesStateOverride(t *testing.T) {
	// sell label 1 does not exist with a single state
	path := writeMockConfig(t)
	err := execute("train", "--config", path, "--states", "1")
	assert.ErrorIs(t, err, model.ErrConfiguration)
}
