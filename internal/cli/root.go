// Package cli implements statsctl, the command line client of the API.
package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/statsgate/internal/httputil"
)

// Environment fallbacks for the global flags.
const (
	ServerEnv = "STATSGATE_URL"
	TokenEnv  = "STATSGATE_TOKEN"
)

const defaultServer = "http://localhost:3000"

type globalOptions struct {
	server  string
	token   string
	timeout time.Duration
}

func (o *globalOptions) client() *httputil.ServiceClient {
	return httputil.NewServiceClient(httputil.ServiceClientConfig{
		BaseURL: o.server,
		Token:   o.token,
		Timeout: o.timeout,
	})
}

// Execute runs statsctl with the process arguments.
func Execute() {
	cmd := NewRootCmd(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		NewPrinter(os.Stdout, os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree writing to out and errOut.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &globalOptions{}
	printer := NewPrinter(out, errOut)

	cmd := &cobra.Command{
		Use:           "statsctl",
		Short:         "Client for the matrix statistics API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVarP(&opts.server, "server", "s", envOr(ServerEnv, defaultServer), "API base URL (env "+ServerEnv+")")
	cmd.PersistentFlags().StringVarP(&opts.token, "token", "t", os.Getenv(TokenEnv), "Bearer token (env "+TokenEnv+")")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")

	cmd.AddCommand(
		healthCmd(opts, printer),
		loginCmd(opts, printer),
		statsCmd(opts, printer),
		qrCmd(opts, printer),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
