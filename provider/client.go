package provider

import (
	"context"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/vitatrack/auth-server/internal/errors"
	"golang.org/x/oauth2"
)

// Client is an OIDC client bound to one provider's current metadata.
// Instances are immutable once constructed; the factory swaps whole
// clients on rebuild.
type Client struct {
	provider         *oidc.Provider
	verifier         *oidc.IDTokenVerifier
	oauth2Config     *oauth2.Config
	userinfoEndpoint string
	httpClient       *http.Client

	autoRegister        bool
	enablePasswordLogin bool
}

// AuthCodeURL builds the provider authorization URL carrying the PKCE
// challenge (S256), state, and nonce.
func (c *Client) AuthCodeURL(state, nonce, codeChallenge string) string {
	return c.oauth2Config.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange trades the authorization code for a token set, proving flow
// ownership with the stored PKCE verifier.
func (c *Client) Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	ctx = oidc.ClientContext(ctx, c.httpClient)
	token, err := c.oauth2Config.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.Exchange] token exchange")
	}
	return token, nil
}

// VerifyIDToken verifies signature, issuer, audience, and expiry against
// the provider's advertised issuer and key set.
func (c *Client) VerifyIDToken(ctx context.Context, rawIDToken string) (*oidc.IDToken, error) {
	ctx = oidc.ClientContext(ctx, c.httpClient)
	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrProtocol, "[Client.VerifyIDToken] %v", err)
	}
	return idToken, nil
}

// HasUserinfo reports whether the provider advertises a userinfo endpoint.
func (c *Client) HasUserinfo() bool {
	return c.userinfoEndpoint != ""
}

// Userinfo fetches the userinfo document with the given token set and
// decodes its claims.
func (c *Client) Userinfo(ctx context.Context, token *oauth2.Token) (map[string]interface{}, error) {
	ctx = oidc.ClientContext(ctx, c.httpClient)
	info, err := c.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.Userinfo] fetch userinfo")
	}
	claims := map[string]interface{}{}
	if err := info.Claims(&claims); err != nil {
		return nil, errors.Wrapf(err, "[Client.Userinfo] decode userinfo claims")
	}
	return claims, nil
}

// AutoRegister reports whether just-in-time account provisioning is
// enabled for this provider.
func (c *Client) AutoRegister() bool {
	return c.autoRegister
}

// PasswordLoginEnabled reports whether the email/password login path is
// allowed alongside federated login.
func (c *Client) PasswordLoginEnabled() bool {
	return c.enablePasswordLogin
}
