package loginflow

import "strings"

// ClaimsBundle is the merged claim set returned by a completed login flow.
// Named fields cover the claims this core reads; everything else rides in
// Raw for the session layer.
type ClaimsBundle struct {
	Subject           string
	Email             string
	PreferredUsername string
	Name              string
	Raw               map[string]interface{}
}

// LoginEmail returns the normalized email identity: the email claim when
// present, else preferred_username, lowercased. Empty when the provider
// supplied neither.
func (c *ClaimsBundle) LoginEmail() string {
	if c.Email != "" {
		return strings.ToLower(c.Email)
	}
	return strings.ToLower(c.PreferredUsername)
}

// DisplayName returns the name claim, falling back to the login email.
func (c *ClaimsBundle) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.LoginEmail()
}

func bundleFromRaw(raw map[string]interface{}) *ClaimsBundle {
	return &ClaimsBundle{
		Subject:           stringClaim(raw, "sub"),
		Email:             stringClaim(raw, "email"),
		PreferredUsername: stringClaim(raw, "preferred_username"),
		Name:              stringClaim(raw, "name"),
		Raw:               raw,
	}
}

func stringClaim(raw map[string]interface{}, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}
