package navauth

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Fragment keys a provider redirect must carry.
const (
	KeyAccessToken   = "access_token"
	KeyExpiresIn     = "expires_in"
	KeyProviderToken = "provider_token"
	KeyRefreshToken  = "refresh_token"
	KeyTokenType     = "token_type"
)

// RequiredCallbackKeys lists the fragment keys in validation order.
var RequiredCallbackKeys = []string{
	KeyAccessToken,
	KeyExpiresIn,
	KeyProviderToken,
	KeyRefreshToken,
	KeyTokenType,
}

// TokenBundle is the token set parsed out of a callback fragment. It is
// handed to the provider exchange and then dropped; never persist it.
type TokenBundle struct {
	AccessToken   string
	ExpiresIn     string
	ProviderToken string
	RefreshToken  string
	TokenType     string
}

// ExpiresInDuration parses ExpiresIn as seconds.
func (b TokenBundle) ExpiresInDuration() (time.Duration, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(b.ExpiresIn), 10, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// Tokens converts the bundle into session tokens.
func (b TokenBundle) Tokens() Tokens {
	return Tokens{
		AccessToken:   b.AccessToken,
		RefreshToken:  b.RefreshToken,
		ProviderToken: b.ProviderToken,
		TokenType:     b.TokenType,
	}
}

// ResolveCallback parses a callback fragment into a TokenBundle. Keys only
// need to be present; a repeated key keeps its last value. Parsing never
// fails: characters that do not decode are kept as written.
func ResolveCallback(fragment string) (TokenBundle, error) {
	values := parseFragment(strings.TrimPrefix(fragment, "#"))

	var missing []string
	for _, key := range RequiredCallbackKeys {
		if _, ok := values[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return TokenBundle{}, withMetadata(
			ErrCallbackMissingFields,
			"callback fragment is missing required fields: "+strings.Join(missing, ", "),
			map[string]any{"missing": missing},
		)
	}

	last := func(key string) string {
		v := values[key]
		return v[len(v)-1]
	}

	return TokenBundle{
		AccessToken:   last(KeyAccessToken),
		ExpiresIn:     last(KeyExpiresIn),
		ProviderToken: last(KeyProviderToken),
		RefreshToken:  last(KeyRefreshToken),
		TokenType:     last(KeyTokenType),
	}, nil
}

// parseFragment splits a form encoded fragment the way browsers do: pairs
// on "&", key and value on the first "=". ";" is an ordinary character.
func parseFragment(fragment string) map[string][]string {
	values := make(map[string][]string)
	for _, pair := range strings.Split(fragment, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = decodeComponent(key)
		values[key] = append(values[key], decodeComponent(value))
	}
	return values
}

// decodeComponent turns "+" into a space and decodes valid percent escapes.
// Broken escapes such as a trailing "%" stay literal.
func decodeComponent(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// Exchanger trades a token bundle for a session asynchronously.
type Exchanger interface {
	Exchange(ctx context.Context, bundle TokenBundle) <-chan error
}

// ExchangeFailureHandler is told when the exchange started for nav fails.
// It runs off the loop.
type ExchangeFailureHandler func(nav Navigation, err error)

// CallbackGuard protects the callback route: a fragment that does not
// resolve sends the user home, a valid one is handed to exchanger and the
// navigation proceeds. A failed exchange is reported to onFailure.
func CallbackGuard(exchanger Exchanger, logger Logger, onFailure ExchangeFailureHandler) RouteGuard {
	if logger == nil {
		logger = defLogger{}
	}
	return func(gc GuardContext) Decision {
		bundle, err := ResolveCallback(gc.Navigation.To.Fragment)
		if err != nil {
			logger.Info("callback fragment rejected, returning home",
				"navigation", gc.Navigation.ID.String(),
				"missing", MissingCallbackFields(err),
				"error", err,
			)
			return RedirectTo(gc.Config.GetHomePath())
		}
		if exchanger == nil {
			return Allow()
		}

		done := exchanger.Exchange(context.Background(), bundle)
		if onFailure != nil {
			nav := gc.Navigation
			go func() {
				if err := <-done; err != nil {
					onFailure(nav, err)
				}
			}()
		}
		return Allow()
	}
}
