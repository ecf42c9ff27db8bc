package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	ups     int
	downs   []int
	version uint
	dirty   bool
	err     error
}

func (f *fakeMigrator) Up() error {
	f.ups++
	return f.err
}

func (f *fakeMigrator) Down(steps int) error {
	f.downs = append(f.downs, steps)
	return f.err
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	return f.version, f.dirty, f.err
}

func TestRun(t *testing.T) {
	t.Run("DefaultsToUp", func(t *testing.T) {
		m := &fakeMigrator{}
		var out bytes.Buffer
		require.NoError(t, run(nil, &out, m))
		assert.Equal(t, 1, m.ups)
		assert.Contains(t, out.String(), "applied")
	})

	t.Run("DownWithSteps", func(t *testing.T) {
		m := &fakeMigrator{}
		var out bytes.Buffer
		require.NoError(t, run([]string{"down", "--steps", "2"}, &out, m))
		assert.Equal(t, []int{2}, m.downs)
		assert.Contains(t, out.String(), "rolled back 2")
	})

	t.Run("DownDefaultsToOneStep", func(t *testing.T) {
		m := &fakeMigrator{}
		require.NoError(t, run([]string{"down"}, &bytes.Buffer{}, m))
		assert.Equal(t, []int{1}, m.downs)
	})

	t.Run("Version", func(t *testing.T) {
		m := &fakeMigrator{version: 3, dirty: true}
		var out bytes.Buffer
		require.NoError(t, run([]string{"version"}, &out, m))
		assert.Equal(t, "version 3 (dirty: true)\n", out.String())
	})

	t.Run("UnknownCommand", func(t *testing.T) {
		var out bytes.Buffer
		err := run([]string{"sideways"}, &out, &fakeMigrator{})
		assert.EqualError(t, err, "unknown command: sideways")
		assert.Contains(t, out.String(), "usage: migrate")
	})

	t.Run("BadFlag", func(t *testing.T) {
		assert.Error(t, run([]string{"--nope"}, &bytes.Buffer{}, &fakeMigrator{}))
	})

	t.Run("MigratorError", func(t *testing.T) {
		m := &fakeMigrator{err: errors.New("dirty database")}
		assert.EqualError(t, run([]string{"up"}, &bytes.Buffer{}, m), "dirty database")
	})
}
