package app

import (
	"github.com/spf13/viper"

	"github.com/cedar-pdp/pdp/pkg/pdp"
)

// buildConfig translates pdpctl's CLI flags (bound into viper by root.go)
// into a pkg/pdp.Config. pdpctl uses its own flag names rather than
// pdp.LoadConfig's wire-config keys since a CLI's flag surface is its own
// contract, not the embedder's JSON config.
func buildConfig() pdp.Config {
	cfg := pdp.Config{
		ApplicationName:         viper.GetString("application-name"),
		LogType:                 viper.GetString("log-type"),
		UseWorkloadPrincipal:    viper.GetBool("use-workload-principal"),
		UseUserPrincipal:        viper.GetBool("use-user-principal"),
		UserWorkloadOperator:    viper.GetString("operator"),
		MetricsPrometheusEnabled: viper.GetBool("metrics-prometheus-enabled"),
	}

	switch {
	case viper.GetString("policy-store-uri") != "":
		cfg.PolicyStore = pdp.PolicyStoreSource{Kind: "uri", URI: viper.GetString("policy-store-uri")}
	case viper.GetString("policy-store-file") != "":
		cfg.PolicyStore = pdp.PolicyStoreSource{Kind: "file", Path: viper.GetString("policy-store-file")}
	default:
		cfg.PolicyStore = pdp.PolicyStoreSource{Kind: "json", JSON: []byte(viper.GetString("policy-store-json"))}
	}

	if viper.GetBool("jwt-disabled") {
		cfg.JWT = pdp.JWTConfig{Disabled: true}
	} else {
		cfg.JWT = pdp.JWTConfig{
			Algorithms:     viper.GetStringSlice("jwt-algorithms"),
			RequiredClaims: viper.GetStringSlice("jwt-required-claims"),
			KeyRefresh: pdp.KeyRefreshConfig{
				Enabled:  viper.GetBool("jwt-key-refresh"),
				AutoPoll: viper.GetBool("jwt-key-auto-poll"),
			},
		}
	}

	return cfg
}
