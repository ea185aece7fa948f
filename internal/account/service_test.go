package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *mockStore) RecordFailedLogin(ctx context.Context, id uuid.UUID, maxAttempts int, lockFor time.Duration, now time.Time) (*User, error) {
	args := m.Called(ctx, id, maxAttempts, lockFor, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *mockStore) ResetFailedLogins(ctx context.Context, id uuid.UUID, now time.Time) error {
	return m.Called(ctx, id, now).Error(0)
}

func policy() Policy {
	return Policy{MaxAttempts: 5, LockDuration: 2 * time.Hour, NewAccountAge: 24 * time.Hour}
}

func TestRecordLoginFailureLocks(t *testing.T) {
	store := new(mockStore)
	svc := NewService(store, policy())
	id := uuid.New()
	until := t0.Add(2 * time.Hour)

	store.On("RecordFailedLogin", mock.Anything, id, 5, 2*time.Hour, t0).
		Return(&User{ID: id, LockUntil: &until}, nil).Once()

	st, err := svc.RecordLogin(context.Background(), id, false, t0)
	require.NoError(t, err)
	assert.True(t, st.Locked)
	assert.Equal(t, until, *st.LockUntil)
	store.AssertExpectations(t)
}

func TestRecordLoginFailureBelowThreshold(t *testing.T) {
	store := new(mockStore)
	svc := NewService(store, policy())
	id := uuid.New()

	store.On("RecordFailedLogin", mock.Anything, id, 5, 2*time.Hour, t0).
		Return(&User{ID: id, FailedLoginAttempts: 3}, nil).Once()

	st, err := svc.RecordLogin(context.Background(), id, false, t0)
	require.NoError(t, err)
	assert.False(t, st.Locked)
	assert.Equal(t, 3, st.Attempts)
}

func TestRecordLoginSuccessResets(t *testing.T) {
	store := new(mockStore)
	svc := NewService(store, policy())
	id := uuid.New()

	store.On("ResetFailedLogins", mock.Anything, id, t0).Return(nil).Once()

	st, err := svc.RecordLogin(context.Background(), id, true, t0)
	require.NoError(t, err)
	assert.False(t, st.Locked)
	store.AssertExpectations(t)
}

func TestLockStatusExpires(t *testing.T) {
	store := new(mockStore)
	svc := NewService(store, policy())
	id := uuid.New()
	until := t0.Add(2 * time.Hour)

	store.On("GetUser", mock.Anything, id).Return(&User{ID: id, LockUntil: &until}, nil)

	st, err := svc.LockStatus(context.Background(), id, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, st.Locked)

	st, err = svc.LockStatus(context.Background(), id, until)
	require.NoError(t, err)
	assert.False(t, st.Locked, "lock ends at lock_until")
}

func TestIsNewAccount(t *testing.T) {
	store := new(mockStore)
	svc := NewService(store, policy())
	fresh, old := uuid.New(), uuid.New()

	store.On("GetUser", mock.Anything, fresh).Return(&User{ID: fresh, CreatedAt: t0.Add(-23 * time.Hour)}, nil)
	store.On("GetUser", mock.Anything, old).Return(&User{ID: old, CreatedAt: t0.Add(-24 * time.Hour)}, nil)

	isNew, err := svc.IsNewAccount(context.Background(), fresh, t0)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = svc.IsNewAccount(context.Background(), old, t0)
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestIsNewAccountPropagatesErrors(t *testing.T) {
	store := new(mockStore)
	svc := NewService(store, policy())
	id := uuid.New()

	store.On("GetUser", mock.Anything, id).Return(nil, errors.New("db down"))

	_, err := svc.IsNewAccount(context.Background(), id, t0)
	assert.EqualError(t, err, "db down")
}
