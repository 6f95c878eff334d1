// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package confirm_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/go-account-template/internal/i18n"
	"codeberg.org/oliverandrich/go-account-template/internal/models"
	"codeberg.org/oliverandrich/go-account-template/internal/repository"
	"codeberg.org/oliverandrich/go-account-template/internal/services/confirm"
	"codeberg.org/oliverandrich/go-account-template/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	repo  *repository.Repository
	mail  *testutil.MailRecorder
	clock *clock
	svc   *confirm.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	require.NoError(t, i18n.Init())

	_, repo := testutil.NewTestDB(t)
	f := &fixture{
		repo:  repo,
		mail:  &testutil.MailRecorder{},
		clock: &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.svc = confirm.NewService(repo, repo, f.mail, "https://app.example.com/", "NY-ERP",
		confirm.WithClock(f.clock.Now))
	return f
}

func (f *fixture) issue(t *testing.T, user *models.User, purpose models.Purpose, payload models.TokenPayload) string {
	t.Helper()
	_, err := f.svc.Issue(context.Background(), user.ID, purpose, payload)
	require.NoError(t, err)
	secret, uid := testutil.LinkParams(t, f.mail.Last(t))
	require.Equal(t, user.ID, uid)
	return secret
}

func TestIssue_VerifyEmail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")

	token, err := f.svc.Issue(ctx, user.ID, models.PurposeVerifyEmail, models.TokenPayload{})

	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, token.ExpiresAt.Sub(token.IssuedAt))
	assert.Equal(t, "ada@example.com", token.Payload.Email)

	msg := f.mail.Last(t)
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Verify your email for NY-ERP", msg.Subject)
	assert.Contains(t, msg.Text, "https://app.example.com/auth/verify-email?token=")

	secret, uid := testutil.LinkParams(t, msg)
	assert.Equal(t, user.ID, uid)
	assert.Len(t, secret, 64)

	stored, err := f.repo.GetPendingToken(ctx, user.ID, models.PurposeVerifyEmail)
	require.NoError(t, err)
	assert.NotEqual(t, secret, stored.SecretHash)
	assert.Equal(t, 24*time.Hour, stored.ExpiresAt.Sub(stored.IssuedAt))
}

func TestIssue_ExpiryIsExactlyOneDay(t *testing.T) {
	f := setup(t)
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")

	for _, offset := range []time.Duration{0, 1500 * time.Millisecond, 37*time.Minute + 123*time.Nanosecond} {
		f.clock.Advance(offset)
		token, err := f.svc.Issue(context.Background(), user.ID, models.PurposeVerifyEmail, models.TokenPayload{})
		require.NoError(t, err)
		assert.Equal(t, confirm.TokenTTL, token.ExpiresAt.Sub(token.IssuedAt))
	}
}

func TestIssue_UnknownSubject(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Issue(context.Background(), "missing", models.PurposeVerifyEmail, models.TokenPayload{})

	require.ErrorIs(t, err, confirm.ErrNotFound)
	assert.Equal(t, 0, f.mail.Count())
}

func TestIssue_UnknownPurpose(t *testing.T) {
	f := setup(t)
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")

	_, err := f.svc.Issue(context.Background(), user.ID, models.Purpose("reset_everything"), models.TokenPayload{})

	require.ErrorIs(t, err, confirm.ErrValidation)
}

func TestIssue_ChangeEmailConflict(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u1 := testutil.NewTestUser(t, f.repo, "a@x.com")
	testutil.NewTestUser(t, f.repo, "b@x.com")

	_, err := f.svc.Issue(ctx, u1.ID, models.PurposeChangeEmail, models.TokenPayload{NewEmail: "b@x.com"})

	require.ErrorIs(t, err, confirm.ErrConflict)
	_, err = f.repo.GetPendingToken(ctx, u1.ID, models.PurposeChangeEmail)
	require.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 0, f.mail.Count())
}

func TestIssue_ChangeEmailValidation(t *testing.T) {
	f := setup(t)
	user := testutil.NewTestUser(t, f.repo, "a@x.com")

	tests := []struct {
		name     string
		newEmail string
		expected error
	}{
		{"empty", "", confirm.ErrInvalidEmail},
		{"malformed", "not-an-email", confirm.ErrInvalidEmail},
		{"same address", "A@X.com", confirm.ErrSameEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Issue(context.Background(), user.ID, models.PurposeChangeEmail,
				models.TokenPayload{NewEmail: tt.newEmail})
			require.ErrorIs(t, err, tt.expected)
			assert.ErrorIs(t, err, confirm.ErrValidation)
		})
	}
	assert.Equal(t, 0, f.mail.Count())
}

func TestIssue_ChangeEmailSendsToNewAddress(t *testing.T) {
	f := setup(t)
	user := testutil.NewTestUser(t, f.repo, "a@x.com")

	token, err := f.svc.Issue(context.Background(), user.ID, models.PurposeChangeEmail,
		models.TokenPayload{NewEmail: "  new@x.com "})

	require.NoError(t, err)
	assert.Equal(t, "new@x.com", token.Payload.NewEmail)

	msg := f.mail.Last(t)
	assert.Equal(t, "new@x.com", msg.To)
	assert.Contains(t, msg.Text, "https://app.example.com/auth/confirm-email-change?token=")
	assert.Contains(t, msg.Text, "a@x.com")
}

func TestIssue_SendFailureKeepsToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")
	f.mail.Err = errors.New("provider down")

	_, err := f.svc.Issue(ctx, user.ID, models.PurposeVerifyEmail, models.TokenPayload{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
	_, err = f.repo.GetPendingToken(ctx, user.ID, models.PurposeVerifyEmail)
	assert.NoError(t, err)
}

func TestRedeem_VerifyEmail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")
	secret := f.issue(t, user, models.PurposeVerifyEmail, models.TokenPayload{})

	err := f.svc.Redeem(ctx, user.ID, models.PurposeVerifyEmail, secret)

	require.NoError(t, err)
	updated, err := f.repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, updated.EmailVerified)
	assert.NotNil(t, updated.EmailVerifiedAt)

	_, err = f.repo.GetPendingToken(ctx, user.ID, models.PurposeVerifyEmail)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRedeem_SucceedsExactlyOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")
	secret := f.issue(t, user, models.PurposeVerifyEmail, models.TokenPayload{})

	require.NoError(t, f.svc.Redeem(ctx, user.ID, models.PurposeVerifyEmail, secret))

	err := f.svc.Redeem(ctx, user.ID, models.PurposeVerifyEmail, secret)
	require.ErrorIs(t, err, confirm.ErrNotFound)
}

func TestRedeem_ConcurrentClaimsSucceedOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")
	secret := f.issue(t, user, models.PurposeVerifyEmail, models.TokenPayload{})

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.svc.Redeem(ctx, user.ID, models.PurposeVerifyEmail, secret)
		}()
	}
	wg.Wait()
	close(errs)

	var ok, notFound int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, confirm.ErrNotFound):
			notFound++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, notFound)
}

func TestRedeem_NoToken(t *testing.T) {
	f := setup(t)
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")

	err := f.svc.Redeem(context.Background(), user.ID, models.PurposeVerifyEmail, "whatever")

	require.ErrorIs(t, err, confirm.ErrNotFound)
}

func TestRedeem_WrongSecret(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")
	secret := f.issue(t, user, models.PurposeVerifyEmail, models.TokenPayload{})

	err := f.svc.Redeem(ctx, user.ID, models.PurposeVerifyEmail, secret+"0")
	require.ErrorIs(t, err, confirm.ErrInvalidToken)

	// The token survives a wrong guess.
	require.NoError(t, f.svc.Redeem(ctx, user.ID, models.PurposeVerifyEmail, secret))
}

func TestRedeem_WrongSecretAfterExpiry(t *testing.T) {
	f := setup(t)
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")
	f.issue(t, user, models.PurposeVerifyEmail, models.TokenPayload{})
	f.clock.Advance(48 * time.Hour)

	err := f.svc.Redeem(context.Background(), user.ID, models.PurposeVerifyEmail, "wrong")

	require.ErrorIs(t, err, confirm.ErrInvalidToken)
}

func TestRedeem_Expired(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")
	secret := f.issue(t, user, models.PurposeVerifyEmail, models.TokenPayload{})
	f.clock.Advance(24*time.Hour + time.Second)

	err := f.svc.Redeem(ctx, user.ID, models.PurposeVerifyEmail, secret)

	require.ErrorIs(t, err, confirm.ErrExpired)
	updated, err := f.repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, updated.EmailVerified)

	_, err = f.repo.GetPendingToken(ctx, user.ID, models.PurposeVerifyEmail)
	require.ErrorIs(t, err, repository.ErrNotFound, "stale token should be removed")
}

func TestRedeem_AtExpiryBoundary(t *testing.T) {
	f := setup(t)
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")
	secret := f.issue(t, user, models.PurposeVerifyEmail, models.TokenPayload{})
	f.clock.Advance(24 * time.Hour)

	err := f.svc.Redeem(context.Background(), user.ID, models.PurposeVerifyEmail, secret)

	assert.NoError(t, err)
}

func TestRedeem_ReissueInvalidatesPrevious(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")
	first := f.issue(t, user, models.PurposeVerifyEmail, models.TokenPayload{})
	second := f.issue(t, user, models.PurposeVerifyEmail, models.TokenPayload{})
	require.NotEqual(t, first, second)

	err := f.svc.Redeem(ctx, user.ID, models.PurposeVerifyEmail, first)
	require.ErrorIs(t, err, confirm.ErrInvalidToken)

	require.NoError(t, f.svc.Redeem(ctx, user.ID, models.PurposeVerifyEmail, second))
}

func TestRedeem_PurposesAreIndependent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "a@x.com")
	verify := f.issue(t, user, models.PurposeVerifyEmail, models.TokenPayload{})
	f.issue(t, user, models.PurposeChangeEmail, models.TokenPayload{NewEmail: "b@x.com"})

	err := f.svc.Redeem(ctx, user.ID, models.PurposeChangeEmail, verify)
	require.ErrorIs(t, err, confirm.ErrInvalidToken)

	require.NoError(t, f.svc.Redeem(ctx, user.ID, models.PurposeVerifyEmail, verify))
	_, err = f.repo.GetPendingToken(ctx, user.ID, models.PurposeChangeEmail)
	assert.NoError(t, err)
}

func TestRedeem_ChangeEmail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "a@x.com")
	secret := f.issue(t, user, models.PurposeChangeEmail, models.TokenPayload{NewEmail: "b@x.com"})

	require.NoError(t, f.svc.Redeem(ctx, user.ID, models.PurposeChangeEmail, secret))

	updated, err := f.repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", updated.Email)
	assert.NotNil(t, updated.EmailChangedAt)
}

func TestRedeem_ChangeEmailTakenMeanwhile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "a@x.com")
	secret := f.issue(t, user, models.PurposeChangeEmail, models.TokenPayload{NewEmail: "b@x.com"})
	testutil.NewTestUser(t, f.repo, "b@x.com")

	err := f.svc.Redeem(ctx, user.ID, models.PurposeChangeEmail, secret)

	require.ErrorIs(t, err, confirm.ErrConflict)
	updated, err := f.repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", updated.Email)
}

func TestRedeem_UnknownPurpose(t *testing.T) {
	f := setup(t)

	err := f.svc.Redeem(context.Background(), "u1", models.Purpose("nope"), "secret")

	require.ErrorIs(t, err, confirm.ErrValidation)
}
