// Package entities implements C5: mapping decoded tokens and caller-supplied
// resource data into a typed Cedar entity set.
package entities

// Config carries the entity-type overrides recognized by the wire
// configuration (mapping_workload, mapping_user, mapping_access_token,
// mapping_id_token, mapping_userinfo_token). An empty field falls back to
// the schema-defined default name.
type Config struct {
	WorkloadType      string
	UserType          string
	AccessTokenType   string
	IDTokenType       string
	UserinfoTokenType string
	RoleType          string
	IssuerType        string
}

const (
	defaultWorkloadType      = "Workload"
	defaultUserType          = "User"
	defaultAccessTokenType   = "AccessToken"
	defaultIDTokenType       = "IdToken"
	defaultUserinfoTokenType = "UserinfoToken"
	defaultRoleType          = "Role"
	defaultIssuerType        = "TrustedIssuer"
)

func (c Config) workloadType() string {
	if c.WorkloadType == "" {
		return defaultWorkloadType
	}
	return c.WorkloadType
}

func (c Config) userType() string {
	if c.UserType == "" {
		return defaultUserType
	}
	return c.UserType
}

func (c Config) accessTokenType() string {
	if c.AccessTokenType == "" {
		return defaultAccessTokenType
	}
	return c.AccessTokenType
}

func (c Config) idTokenType() string {
	if c.IDTokenType == "" {
		return defaultIDTokenType
	}
	return c.IDTokenType
}

func (c Config) userinfoTokenType() string {
	if c.UserinfoTokenType == "" {
		return defaultUserinfoTokenType
	}
	return c.UserinfoTokenType
}

func (c Config) roleType() string {
	if c.RoleType == "" {
		return defaultRoleType
	}
	return c.RoleType
}

func (c Config) issuerType() string {
	if c.IssuerType == "" {
		return defaultIssuerType
	}
	return c.IssuerType
}
