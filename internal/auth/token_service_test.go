package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T, clock func() time.Time) *TokenService {
	t.Helper()

	svc, err := NewTokenService(TokenConfig{
		GeneralSecret: "general-secret",
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		ResetSecret:   "reset-secret",
		Issuer:        "buildx",
		Clock:         clock,
	})
	require.NoError(t, err)
	return svc
}

func TestNewTokenServiceRequiresSecrets(t *testing.T) {
	_, err := NewTokenService(TokenConfig{
		AccessSecret:  "a",
		RefreshSecret: "r",
		ResetSecret:   "s",
	})
	require.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService(t, nil)

	token, err := svc.IssueAccessToken(42, "member@example.com", "PM")
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "member@example.com", claims.Email)
	require.Equal(t, "PM", claims.Role)

	id, err := claims.UserID()
	require.NoError(t, err)
	require.Equal(t, uint(42), id)
}

func TestSecretsAreIsolatedPerTokenKind(t *testing.T) {
	svc := newTestTokenService(t, nil)

	access, err := svc.IssueAccessToken(1, "a@x.com", "AD")
	require.NoError(t, err)
	refresh, err := svc.IssueRefreshToken(1)
	require.NoError(t, err)
	reset, err := svc.IssueResetToken("a@x.com")
	require.NoError(t, err)

	_, err = svc.VerifyRefreshToken(access)
	require.Error(t, err)
	_, err = svc.VerifyAccessToken(refresh)
	require.Error(t, err)
	_, err = svc.VerifyAccessToken(reset)
	require.Error(t, err)
	_, err = svc.VerifyResetToken(access)
	require.Error(t, err)
}

func TestInvitationTokenExpiry(t *testing.T) {
	current := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, func() time.Time { return current })

	token, err := svc.IssueInvitationToken("invitee@example.com")
	require.NoError(t, err)

	email, err := svc.VerifyInvitationToken(token)
	require.NoError(t, err)
	require.Equal(t, "invitee@example.com", email)

	current = current.Add(7*24*time.Hour + time.Minute)
	_, err = svc.VerifyInvitationToken(token)
	require.Error(t, err)
}

func TestOnboardingTokenRequiresStepClaim(t *testing.T) {
	svc := newTestTokenService(t, nil)

	onboarding, err := svc.IssueOnboardingToken("member@example.com")
	require.NoError(t, err)

	email, err := svc.VerifyOnboardingToken(onboarding)
	require.NoError(t, err)
	require.Equal(t, "member@example.com", email)

	// An invitation token signs with the same secret but carries no
	// step claim, so it must not pass onboarding verification.
	invitation, err := svc.IssueInvitationToken("member@example.com")
	require.NoError(t, err)
	_, err = svc.VerifyOnboardingToken(invitation)
	require.Error(t, err)

	// The reverse holds too: the step claim marks a token as an
	// onboarding credential, so it must not re-enter the flow as an
	// invitation.
	_, err = svc.VerifyInvitationToken(onboarding)
	require.Error(t, err)
}

func TestResetTokenExpiresInFiveMinutes(t *testing.T) {
	current := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, func() time.Time { return current })

	token, err := svc.IssueResetToken("member@example.com")
	require.NoError(t, err)

	current = current.Add(4 * time.Minute)
	email, err := svc.VerifyResetToken(token)
	require.NoError(t, err)
	require.Equal(t, "member@example.com", email)

	current = current.Add(2 * time.Minute)
	_, err = svc.VerifyResetToken(token)
	require.Error(t, err)
}

func TestIssuerMismatchRejected(t *testing.T) {
	issuerA := newTestTokenService(t, nil)

	other, err := NewTokenService(TokenConfig{
		GeneralSecret: "general-secret",
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		ResetSecret:   "reset-secret",
		Issuer:        "someone-else",
	})
	require.NoError(t, err)

	token, err := other.IssueAccessToken(7, "x@y.com", "QS")
	require.NoError(t, err)

	_, err = issuerA.VerifyAccessToken(token)
	require.Error(t, err)
}
