package google

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "token.json")
	store := NewFileStore(path)

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoCredential)

	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tok := (&oauth2.Token{
		AccessToken:  "ya29.access",
		TokenType:    "Bearer",
		RefreshToken: "1//refresh",
		Expiry:       expiry,
	}).WithExtra(map[string]any{"scope": SendScopes[0]})

	require.NoError(t, store.Save(ctx, tok))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ya29.access", got.AccessToken)
	assert.Equal(t, "Bearer", got.TokenType)
	assert.Equal(t, "1//refresh", got.RefreshToken)
	assert.True(t, expiry.Equal(got.Expiry))
	assert.Equal(t, SendScopes[0], got.Extra("scope"))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		dirInfo, err := os.Stat(filepath.Dir(path))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
	}
}

func TestFileStore_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("ya29 1//refresh"), 0o600))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCredential)
}

func TestFileStore_SaveNil(t *testing.T) {
	assert.Error(t, NewFileStore(filepath.Join(t.TempDir(), "t.json")).Save(context.Background(), nil))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoCredential)

	tok := &oauth2.Token{AccessToken: "a"}
	require.NoError(t, store.Save(ctx, tok))
	tok.AccessToken = "mutated"

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", got.AccessToken)
	assert.Equal(t, 1, store.Saves())
}
