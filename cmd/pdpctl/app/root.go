package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cedar-pdp/pdp/pkg/logger"
)

// NewRootCmd builds the pdpctl root command: a thin, bootstrap-and-call
// wrapper around pkg/pdp.Facade.Authorize — pdpctl owns no authorization
// logic of its own.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pdpctl",
		Short: "pdpctl evaluates authorization requests against a Cedar policy store",
		PersistentPreRun: func(*cobra.Command, []string) {
			logger.Initialize()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().String("policy-store-file", "", "path to a policy store document")
	root.PersistentFlags().String("policy-store-json", "", "inline policy store document")
	root.PersistentFlags().String("policy-store-uri", "", "remote policy store URI")
	root.PersistentFlags().String("log-type", "stdout", "decision log sink: off|stdout|lock")
	root.PersistentFlags().String("application-name", "pdpctl", "tag applied to every log entry")
	root.PersistentFlags().Bool("use-workload-principal", false, "enable the workload principal view")
	root.PersistentFlags().Bool("use-user-principal", true, "enable the user principal view")
	root.PersistentFlags().String("operator", "AND", "how to combine the two principal views: AND|OR")
	root.PersistentFlags().Bool("jwt-disabled", false, "skip signature/temporal JWT checks (still decodes claims)")
	root.PersistentFlags().StringSlice("jwt-algorithms", []string{"RS256", "ES256"}, "acceptable JWT signing algorithms")
	root.PersistentFlags().StringSlice("jwt-required-claims", []string{"iss", "exp"}, "claims that must be present after decoding")
	root.PersistentFlags().Bool("jwt-key-refresh", true, "refresh the issuer's keyset and retry once on KeyNotFound")
	root.PersistentFlags().Bool("jwt-key-auto-poll", false, "use a background-polled key cache instead of refresh-on-miss")
	root.PersistentFlags().Bool("metrics-prometheus-enabled", false, "register the meter as a Prometheus collector")

	for _, name := range []string{
		"policy-store-file", "policy-store-json", "policy-store-uri", "log-type", "application-name",
		"use-workload-principal", "use-user-principal", "operator", "jwt-disabled", "jwt-algorithms",
		"jwt-required-claims", "jwt-key-refresh", "jwt-key-auto-poll", "metrics-prometheus-enabled",
	} {
		if err := viper.BindPFlag(name, root.PersistentFlags().Lookup(name)); err != nil {
			logger.Errorf("error binding --%s: %v", name, err)
		}
	}

	root.AddCommand(newAuthorizeCmd())
	root.AddCommand(newMetricsCmd())
	return root
}
