package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModeSwitcher struct {
	mode   string
	switchedTo string
}

func (f *fakeModeSwitcher) Current() string { return f.mode }
func (f *fakeModeSwitcher) SwitchTo(ctx context.Context, newMode string) error {
	f.switchedTo = newMode
	f.mode = newMode
	return nil
}

type fakeOBDHStore struct {
	scanned   bool
	deleted   bool
	cleanedUp bool
}

func (f *fakeOBDHStore) Scan() error      { f.scanned = true; return nil }
func (f *fakeOBDHStore) DeleteAll() error { f.deleted = true; return nil }
func (f *fakeOBDHStore) CleanUp() error   { f.cleanedUp = true; return nil }

func TestOBDHBringsUpStorageAndAdvancesFromStartup(t *testing.T) {
	sm := &fakeModeSwitcher{mode: "STARTUP"}
	store := &fakeOBDHStore{}
	obdh := NewOBDH(sm, store, nil, nil)

	err := obdh.MainTask(context.Background())
	require.NoError(t, err)

	assert.True(t, store.deleted)
	assert.True(t, store.scanned)
	assert.Equal(t, "NOMINAL", sm.switchedTo)
}

func TestOBDHScansOnlyOnceAcrossStartupActivations(t *testing.T) {
	sm := &fakeModeSwitcher{mode: "STARTUP"}
	store := &fakeOBDHStore{}
	obdh := NewOBDH(sm, store, nil, nil)

	require.NoError(t, obdh.MainTask(context.Background()))
	store.scanned = false
	sm.mode = "STARTUP" // pretend the transition hadn't actually advanced us yet
	require.NoError(t, obdh.MainTask(context.Background()))

	assert.False(t, store.scanned, "a second STARTUP activation must not re-scan")
}

func TestOBDHCleansUpInNominal(t *testing.T) {
	sm := &fakeModeSwitcher{mode: "NOMINAL"}
	store := &fakeOBDHStore{}
	obdh := NewOBDH(sm, store, nil, nil)

	require.NoError(t, obdh.MainTask(context.Background()))
	assert.True(t, store.cleanedUp)
	assert.False(t, store.deleted)
}
