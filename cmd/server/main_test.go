package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := rootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestMigrate_RejectsUnknownDirection(t *testing.T) {
	require.Error(t, run(t, "migrate", "sideways"))
	require.Error(t, run(t, "migrate"))
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	require.ErrorContains(t, run(t, "migrate", "status"), "DATABASE_URL is required")
}

func TestServe_RejectsInvalidConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("IN_MEMORY", "")
	t.Setenv("REMEMBER_ME_KEY", "")
	require.ErrorContains(t, run(t, "serve"), "DATABASE_URL is required")
}
