package config

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchReloadsOnExternalWrite(t *testing.T) {
	s := tempStore(t)

	changed := make(chan struct{}, 1)
	stop, err := s.Watch(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer stop()

	cfg := s.Get()
	cfg.Port = 8080
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), data, 0644))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not observe the external write")
	}
	assert.Equal(t, 8080, s.Get().Port)
}

func TestWatchIgnoresSiblingFiles(t *testing.T) {
	s := tempStore(t)

	changed := make(chan struct{}, 1)
	stop, err := s.Watch(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer stop()

	sibling := s.Path() + ".bak"
	require.NoError(t, os.WriteFile(sibling, []byte("{}"), 0644))

	select {
	case <-changed:
		t.Fatal("watcher reacted to an unrelated file")
	case <-time.After(500 * time.Millisecond):
	}
}
