// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reloadEvent struct {
	res ApplyResult
	err error
}

func TestModelWatcher_CommitsChangedWeights(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "net.yaml")
	require.NoError(t, os.WriteFile(path, []byte(competingYAML), 0o600))
	def, err := LoadNetworkFile(path)
	require.NoError(t, err)
	m, err := def.Build()
	require.NoError(t, err)

	events := make(chan reloadEvent, 4)
	w, err := NewModelWatcher(path, m, WatcherOptions{
		Debounce: 20 * time.Millisecond,
		OnReload: func(res ApplyResult, err error) { events <- reloadEvent{res, err} },
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()
	assert.True(t, w.IsWatching())

	updated := strings.Replace(competingYAML, "{id: 1, input: 1, output: 2, weight: 10}", "{id: 1, input: 1, output: 2, weight: 7}", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	select {
	case ev := <-events:
		require.NoError(t, ev.err)
		assert.Equal(t, 1, ev.res.Weights)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after file change")
	}
	s, err := m.Synapse(1)
	require.NoError(t, err)
	assert.Equal(t, 7.0, s.Weight())

	w.Stop()
	w.Stop()
	assert.False(t, w.IsWatching())
}

func TestModelWatcher_ReportsInvalidFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "net.yaml")
	require.NoError(t, os.WriteFile(path, []byte(competingYAML), 0o600))
	_, m := competingNetwork(t)

	w, err := NewModelWatcher(path, m, WatcherOptions{})
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("neurons: []\n"), 0o600))
	_, err = w.Reload(ctx)
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestModelWatcher_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	path := filepath.Join(t.TempDir(), "net.yaml")
	require.NoError(t, os.WriteFile(path, []byte(competingYAML), 0o600))
	_, m := competingNetwork(t)

	w, err := NewModelWatcher(path, m, WatcherOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	require.True(t, w.IsWatching())

	cancel()
	assert.Eventually(t, func() bool { return !w.IsWatching() }, 5*time.Second, 10*time.Millisecond)

	// The fsnotify watcher is closed, so adding a path now fails.
	assert.Error(t, w.watcher.Add(filepath.Dir(path)))
	w.Stop()
}
