package navauth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-navauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullFragment = "access_token=at&expires_in=3600&provider_token=pt&refresh_token=rt&token_type=bearer"

func TestResolveCallback(t *testing.T) {
	for _, fragment := range []string{fullFragment, "#" + fullFragment} {
		bundle, err := navauth.ResolveCallback(fragment)
		require.NoError(t, err)
		assert.Equal(t, navauth.TokenBundle{
			AccessToken:   "at",
			ExpiresIn:     "3600",
			ProviderToken: "pt",
			RefreshToken:  "rt",
			TokenType:     "bearer",
		}, bundle)
	}
}

func TestResolveCallbackMissingFields(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		missing  []string
	}{
		{
			name:     "empty",
			fragment: "",
			missing:  navauth.RequiredCallbackKeys,
		},
		{
			name:     "only access token",
			fragment: "access_token=at",
			missing:  []string{"expires_in", "provider_token", "refresh_token", "token_type"},
		},
		{
			name:     "missing refresh token",
			fragment: "access_token=at&expires_in=1&provider_token=pt&token_type=bearer",
			missing:  []string{"refresh_token"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := navauth.ResolveCallback(tt.fragment)
			require.Error(t, err)
			assert.True(t, navauth.HasTextCode(err, navauth.ErrCallbackMissingFields))
			assert.Equal(t, tt.missing, navauth.MissingCallbackFields(err))
		})
	}
}

func TestResolveCallbackPresenceOnly(t *testing.T) {
	bundle, err := navauth.ResolveCallback("access_token=&expires_in=&provider_token=&refresh_token=&token_type=")
	require.NoError(t, err)
	assert.Empty(t, bundle.AccessToken)
}

func TestResolveCallbackRepeatedKeyKeepsLast(t *testing.T) {
	bundle, err := navauth.ResolveCallback(fullFragment + "&access_token=second")
	require.NoError(t, err)
	assert.Equal(t, "second", bundle.AccessToken)
}

func TestResolveCallbackKeepsLiteralCharacters(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		expected navauth.TokenBundle
	}{
		{
			name:     "semicolon in value",
			fragment: "access_token=a;b&expires_in=3600&provider_token=p&refresh_token=r&token_type=bearer",
			expected: navauth.TokenBundle{AccessToken: "a;b", ExpiresIn: "3600", ProviderToken: "p", RefreshToken: "r", TokenType: "bearer"},
		},
		{
			name:     "trailing percent",
			fragment: "access_token=a&expires_in=3600&provider_token=p%&refresh_token=r&token_type=bearer",
			expected: navauth.TokenBundle{AccessToken: "a", ExpiresIn: "3600", ProviderToken: "p%", RefreshToken: "r", TokenType: "bearer"},
		},
		{
			name:     "broken escape next to a valid one",
			fragment: "access_token=a%20%zz&expires_in=3600&provider_token=p&refresh_token=r&token_type=bearer",
			expected: navauth.TokenBundle{AccessToken: "a %zz", ExpiresIn: "3600", ProviderToken: "p", RefreshToken: "r", TokenType: "bearer"},
		},
		{
			name:     "plus and escapes decode",
			fragment: "access_token=a+b%2Bc&expires_in=3600&provider_token=p&refresh_token=r&token_type=Bearer+x",
			expected: navauth.TokenBundle{AccessToken: "a b+c", ExpiresIn: "3600", ProviderToken: "p", RefreshToken: "r", TokenType: "Bearer x"},
		},
		{
			name:     "value with equals sign",
			fragment: "access_token=a=b&expires_in=3600&provider_token=p&&refresh_token=r&token_type=bearer",
			expected: navauth.TokenBundle{AccessToken: "a=b", ExpiresIn: "3600", ProviderToken: "p", RefreshToken: "r", TokenType: "bearer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle, err := navauth.ResolveCallback(tt.fragment)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, bundle)
		})
	}
}

func TestResolveCallbackDroppingAnyKey(t *testing.T) {
	for _, key := range navauth.RequiredCallbackKeys {
		t.Run(key, func(t *testing.T) {
			var pairs []string
			for _, pair := range strings.Split(fullFragment, "&") {
				if !strings.HasPrefix(pair, key+"=") {
					pairs = append(pairs, pair)
				}
			}
			require.Len(t, pairs, len(navauth.RequiredCallbackKeys)-1)

			_, err := navauth.ResolveCallback(strings.Join(pairs, "&"))
			require.Error(t, err)
			assert.True(t, navauth.HasTextCode(err, navauth.ErrCallbackMissingFields))
			assert.Equal(t, []string{key}, navauth.MissingCallbackFields(err))
		})
	}
}

func TestTokenBundleHelpers(t *testing.T) {
	bundle, err := navauth.ResolveCallback(fullFragment)
	require.NoError(t, err)

	d, err := bundle.ExpiresInDuration()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	tokens := bundle.Tokens()
	assert.Equal(t, "at", tokens.AccessToken)
	assert.Equal(t, "rt", tokens.RefreshToken)
	assert.Equal(t, "pt", tokens.ProviderToken)
	assert.Equal(t, "bearer", tokens.TokenType)

	_, err = navauth.TokenBundle{ExpiresIn: "soon"}.ExpiresInDuration()
	assert.Error(t, err)
}

type recordingExchanger struct {
	bundles []navauth.TokenBundle
	err     error
}

func (r *recordingExchanger) Exchange(_ context.Context, bundle navauth.TokenBundle) <-chan error {
	r.bundles = append(r.bundles, bundle)
	done := make(chan error, 1)
	done <- r.err
	return done
}

func TestCallbackGuard(t *testing.T) {
	exchanger := &recordingExchanger{}
	failures := make(chan error, 1)
	guard := navauth.CallbackGuard(exchanger, nopLogger{}, func(_ navauth.Navigation, err error) {
		failures <- err
	})
	cfg := navauth.DefaultOptions()

	d := guard(navauth.GuardContext{Navigation: navTo("/callback#" + fullFragment), Config: cfg})
	assert.Equal(t, navauth.Allow(), d)
	require.Len(t, exchanger.bundles, 1)
	assert.Equal(t, "at", exchanger.bundles[0].AccessToken)

	d = guard(navauth.GuardContext{Navigation: navTo("/callback#access_token=at"), Config: cfg})
	assert.Equal(t, navauth.RedirectTo("/"), d)
	assert.Len(t, exchanger.bundles, 1)
	assert.Empty(t, failures, "a successful exchange is not reported")
}

func TestCallbackGuardReportsFailedExchange(t *testing.T) {
	exchanger := &recordingExchanger{err: errors.New("token rejected")}

	type failure struct {
		nav navauth.Navigation
		err error
	}
	failures := make(chan failure, 1)
	guard := navauth.CallbackGuard(exchanger, nopLogger{}, func(nav navauth.Navigation, err error) {
		failures <- failure{nav: nav, err: err}
	})

	nav := navTo("/callback#" + fullFragment)
	d := guard(navauth.GuardContext{Navigation: nav, Config: navauth.DefaultOptions()})
	assert.Equal(t, navauth.Allow(), d)

	select {
	case f := <-failures:
		assert.Equal(t, nav.ID, f.nav.ID)
		assert.EqualError(t, f.err, "token rejected")
	case <-time.After(time.Second):
		t.Fatal("failed exchange was not reported")
	}
}
