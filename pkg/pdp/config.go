package pdp

import (
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/cedar-pdp/pdp/pkg/entities"
)

// PolicyStoreSource selects how the policy store document is obtained, per
// the policy_store_config.source configuration key.
type PolicyStoreSource struct {
	// Kind is "json" (inline document), "file" (local path), or "uri"
	// (fetched through the HTTP fetcher).
	Kind string
	// JSON holds the inline document when Kind == "json".
	JSON []byte
	// Path holds the filesystem path when Kind == "file".
	Path string
	// URI holds the remote location when Kind == "uri".
	URI string
}

// KeyRefreshConfig governs whether a KeyNotFound error triggers a key
// service refresh-and-retry before failing the request.
type KeyRefreshConfig struct {
	Enabled bool
	// TolerateOptionalTokenErrors resolves the propagation-policy question
	// when true, a validation error for an *optional* token (one not
	// required by an enabled principal view) is treated as "token absent"
	// rather than failing the whole request. Defaults to false (strict
	// fail), matching DESIGN NOTES open question (i).
	TolerateOptionalTokenErrors bool
	// AutoPoll switches the key service from Service's caller-driven
	// refresh-on-KeyNotFound to jwks.AutoRefreshService's background-polled
	// cache. Issuers are registered with the poller at bootstrap instead of
	// refreshed lazily on the request path.
	AutoPoll bool
}

// JWTConfig mirrors the jwt_config wire key: either Disabled (skip
// signature/temporal checks, still decode) or a concrete algorithm/claim
// policy.
type JWTConfig struct {
	Disabled       bool
	Algorithms     []string
	RequiredClaims []string
	Leeway         time.Duration
	KeyRefresh     KeyRefreshConfig
}

// MappingConfig carries the five entity-type overrides recognized by the
// wire configuration.
type MappingConfig struct {
	Workload      string
	User          string
	AccessToken   string
	IDToken       string
	UserinfoToken string
}

func (m MappingConfig) toEntitiesConfig() entities.Config {
	return entities.Config{
		WorkloadType:      m.Workload,
		UserType:          m.User,
		AccessTokenType:   m.AccessToken,
		IDTokenType:       m.IDToken,
		UserinfoTokenType: m.UserinfoToken,
	}
}

// DecisionLogConfig governs claim projection in the decision log.
type DecisionLogConfig struct {
	WorkloadClaims []string
	UserClaims     []string
	DefaultJWTID   bool
}

// Config is the Facade's bootstrap configuration: every recognized key
// from the wire configuration plus the ambient additions needed to run.
type Config struct {
	ApplicationName string
	// LogType selects the decision-log sink: "off", "stdout", or "lock".
	LogType string

	PolicyStore PolicyStoreSource
	JWT         JWTConfig

	UseWorkloadPrincipal bool
	UseUserPrincipal     bool
	// UserWorkloadOperator is "AND" or "OR"; defaults to "AND".
	UserWorkloadOperator string

	Mapping     MappingConfig
	DecisionLog DecisionLogConfig

	// MetricsPrometheusEnabled turns on the optional Prometheus collector
	// registration for the in-process meter.
	MetricsPrometheusEnabled bool

	// RollingGaugeCapacity bounds the avg_decision_ms rolling window.
	// Defaults to 100 when zero.
	RollingGaugeCapacity int

	// HTTPClient is used by the HTTP fetcher for JWKS/OpenID discovery and
	// the "uri" policy-store source. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// LoadConfig reads the recognized configuration keys from v, which the
// caller has already pointed at an inline map, a file, or environment
// variables via viper's usual mechanisms.
func LoadConfig(v *viper.Viper) Config {
	cfg := Config{
		ApplicationName:      v.GetString("application_name"),
		LogType:              v.GetString("log_type"),
		UseWorkloadPrincipal: v.GetBool("use_workload_principal"),
		UseUserPrincipal:     v.GetBool("use_user_principal"),
		UserWorkloadOperator: v.GetString("user_workload_operator"),
		Mapping: MappingConfig{
			Workload:      v.GetString("mapping_workload"),
			User:          v.GetString("mapping_user"),
			AccessToken:   v.GetString("mapping_access_token"),
			IDToken:       v.GetString("mapping_id_token"),
			UserinfoToken: v.GetString("mapping_userinfo_token"),
		},
		DecisionLog: DecisionLogConfig{
			WorkloadClaims: v.GetStringSlice("decision_log_workload_claims"),
			UserClaims:     v.GetStringSlice("decision_log_user_claims"),
			DefaultJWTID:   v.GetBool("decision_log_default_jwt_id"),
		},
		MetricsPrometheusEnabled: v.GetBool("metrics.prometheus_enabled"),
		RollingGaugeCapacity:     v.GetInt("rolling_gauge_capacity"),
	}

	switch v.GetString("policy_store_config.source") {
	case "file":
		cfg.PolicyStore = PolicyStoreSource{Kind: "file", Path: v.GetString("policy_store_config.path")}
	case "uri":
		cfg.PolicyStore = PolicyStoreSource{Kind: "uri", URI: v.GetString("policy_store_config.uri")}
	default:
		cfg.PolicyStore = PolicyStoreSource{Kind: "json", JSON: []byte(v.GetString("policy_store_config.json"))}
	}

	if v.GetBool("jwt_config.disabled") {
		cfg.JWT = JWTConfig{Disabled: true}
	} else {
		cfg.JWT = JWTConfig{
			Algorithms:     v.GetStringSlice("jwt_config.algorithms"),
			RequiredClaims: v.GetStringSlice("jwt_config.required_claims"),
			Leeway:         v.GetDuration("jwt_config.leeway"),
			KeyRefresh: KeyRefreshConfig{
				Enabled:                     v.GetBool("jwt_config.key_refresh.enabled"),
				TolerateOptionalTokenErrors: v.GetBool("jwt_config.key_refresh.tolerate_optional_token_errors"),
				AutoPoll:                    v.GetBool("jwt_config.key_refresh.auto_poll"),
			},
		}
	}

	return cfg
}
