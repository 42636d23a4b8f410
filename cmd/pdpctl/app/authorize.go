package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cedar-pdp/pdp/pkg/logger"
	"github.com/cedar-pdp/pdp/pkg/pdp"
)

func newAuthorizeCmd() *cobra.Command {
	var requestPath string

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Evaluate one authorization request and print the decision",
		Long: `Evaluate one authorization request against the configured policy store
and print the AuthorizeResult as JSON.

The request document is read from --request-file, or from stdin if omitted:

  pdpctl authorize --policy-store-file store.json --request-file req.json
  cat req.json | pdpctl authorize --policy-store-file store.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAuthorize(cmd, requestPath)
		},
	}
	cmd.Flags().StringVar(&requestPath, "request-file", "", "path to the request JSON document (default: stdin)")
	return cmd
}

func runAuthorize(cmd *cobra.Command, requestPath string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var raw []byte
	var err error
	if requestPath != "" {
		raw, err = os.ReadFile(requestPath)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("reading request document: %w", err)
	}

	var req pdp.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("parsing request document: %w", err)
	}

	facade, err := pdp.New(ctx, buildConfig())
	if err != nil {
		return fmt.Errorf("bootstrapping PDP: %w", err)
	}

	result, err := facade.Authorize(ctx, req)
	if err != nil {
		logger.Errorf("authorize failed: %v", err)
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
