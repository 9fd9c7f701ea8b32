package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"financial-matrix/models"
	"financial-matrix/store"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-test-secret-test-secret!"

func newTestProvider(t *testing.T, st *store.MemoryStore) *LocalSessionProvider {
	t.Helper()
	p := NewLocalSessionProvider(st, testSecret, time.Hour, 24*time.Hour)
	p.bcryptCost = bcrypt.MinCost
	return p
}

// failingUsers wraps a UserStore and fails selected calls.
type failingUsers struct {
	store.UserStore
	createErr error
	getErr    error
}

func (f *failingUsers) CreateUser(ctx context.Context, u *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.UserStore.CreateUser(ctx, u)
}

func (f *failingUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.UserStore.GetUser(ctx, id)
}

var errBoom = errors.New("boom")

// seedReferrer signs up a user with no referral and returns its profile.
func seedReferrer(t *testing.T, svc *ReferralService, email string) *models.User {
	t.Helper()
	res, err := svc.Signup(context.Background(), email, "secret123", "")
	require.NoError(t, err)
	require.NoError(t, res.ProfileErr)
	return res.Profile
}
