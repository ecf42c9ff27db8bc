package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"zazoom-be/internal/admin"
	"zazoom-be/internal/auth"
	"zazoom-be/internal/order"
	"zazoom-be/internal/utils"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	orderCalls  [][2]string
	driverCalls [][2]string
	admins      []string
	err         error

	cutoff       *time.Time
	wipeErr      error
	wipedThrough []time.Time
}

func (f *fakeService) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	name, _ := utils.GetAdminFromContext(ctx)
	f.admins = append(f.admins, name)
	f.orderCalls = append(f.orderCalls, [2]string{orderID, status})
	return f.err
}

func (f *fakeService) UpdateDriverStatus(_ context.Context, driverID, status string) error {
	f.driverCalls = append(f.driverCalls, [2]string{driverID, status})
	return f.err
}

func (f *fakeService) Export(_ context.Context, w io.Writer, _ []age.Recipient) (*admin.BurnReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	n, _ := io.WriteString(w, "sealed")
	return &admin.BurnReport{Orders: 2, Bytes: int64(n), Cutoff: f.cutoff}, nil
}

func (f *fakeService) Wipe(_ context.Context, cutoff time.Time) (int64, error) {
	f.wipedThrough = append(f.wipedThrough, cutoff)
	if f.wipeErr != nil {
		return 0, f.wipeErr
	}
	return 2, nil
}

func execute(t *testing.T, svc *fakeService, args ...string) (string, error) {
	t.Helper()
	closed := false
	root := newRootCmd(func() (adminService, func(), error) {
		return svc, func() { closed = true }, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil && len(args) > 0 && args[0] != "hash-password" {
		assert.True(t, closed, "connection not released")
	}
	return out.String(), err
}

func TestOrderStatusCmd(t *testing.T) {
	svc := &fakeService{}
	out, err := execute(t, svc, "order-status", "o-1", "delivered")
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"o-1", "delivered"}}, svc.orderCalls)
	assert.Equal(t, []string{"cli"}, svc.admins)
	assert.Contains(t, out, "order o-1 is now delivered")

	_, err = execute(t, &fakeService{}, "order-status", "o-1")
	assert.Error(t, err)

	_, err = execute(t, &fakeService{err: order.ErrInvalidStatus}, "order-status", "o-1", "lost")
	assert.ErrorIs(t, err, order.ErrInvalidStatus)
}

func TestDriverStatusCmd(t *testing.T) {
	svc := &fakeService{}
	out, err := execute(t, svc, "driver-status", "d-1", "offline")
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"d-1", "offline"}}, svc.driverCalls)
	assert.Contains(t, out, "driver d-1 is now offline")
}

func TestBurnCmd(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	key := identity.Recipient().String()

	cutoff := time.Date(2026, 10, 17, 15, 4, 5, 0, time.UTC)

	t.Run("WritesExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.zst.age")
		svc := &fakeService{cutoff: &cutoff}
		out, err := execute(t, svc, "burn", "-r", key, "-o", path)
		require.NoError(t, err)
		assert.Empty(t, svc.wipedThrough)
		assert.Contains(t, out, "exported 2 orders")
		assert.NotContains(t, out, "wiped")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "sealed", string(data))
	})

	t.Run("WipesThroughExportCutoff", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.zst.age")
		svc := &fakeService{cutoff: &cutoff}
		out, err := execute(t, svc, "burn", "-r", key, "-o", path, "--wipe")
		require.NoError(t, err)
		assert.Equal(t, []time.Time{cutoff}, svc.wipedThrough)
		assert.Contains(t, out, "wiped 2 orders")
		assert.FileExists(t, path)
	})

	t.Run("EmptyExportWipesNothing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.zst.age")
		svc := &fakeService{}
		_, err := execute(t, svc, "burn", "-r", key, "-o", path, "--wipe")
		require.NoError(t, err)
		assert.Empty(t, svc.wipedThrough)
	})

	t.Run("WipeFailureKeepsExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.zst.age")
		svc := &fakeService{cutoff: &cutoff, wipeErr: errors.New("db down")}
		_, err := execute(t, svc, "burn", "-r", key, "-o", path, "--wipe")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "export kept at "+path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "sealed", string(data))
	})

	t.Run("RefusesToOverwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "exists")
		require.NoError(t, os.WriteFile(path, []byte("keep"), 0o600))
		_, err := execute(t, &fakeService{}, "burn", "-r", key, "-o", path)
		assert.Error(t, err)

		data, _ := os.ReadFile(path)
		assert.Equal(t, "keep", string(data))
	})

	t.Run("FailureRemovesPartialFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "partial")
		svc := &fakeService{err: errors.New("db down")}
		_, err := execute(t, svc, "burn", "-r", key, "-o", path, "--wipe")
		assert.EqualError(t, err, "db down")
		assert.NoFileExists(t, path)
		assert.Empty(t, svc.wipedThrough)
	})

	t.Run("NeedsRecipient", func(t *testing.T) {
		_, err := execute(t, &fakeService{}, "burn")
		assert.ErrorIs(t, err, admin.ErrNoRecipients)
	})
}

func TestHashPasswordCmd(t *testing.T) {
	out, err := execute(t, nil, "hash-password", "hunter2")
	require.NoError(t, err)
	assert.True(t, auth.CheckPasswordHash("hunter2", string(bytes.TrimSpace([]byte(out)))))
}
