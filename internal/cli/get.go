package cli

import (
	"context"

	"github.com/spf13/cobra"

	xclient "github.com/anatolykoptev/go-xclient"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <url|/path>",
		Short: "Send a signed GET request and print the response",
		Long: `Send a signed GET request through the API client. A path starting with /
is resolved against ` + xclient.APIBaseURL + `.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()

			resp, err := c.Get(ctx, xclient.ResolveURL(args[0]))
			if err != nil {
				return err
			}
			printf(cmd.ErrOrStderr(), "HTTP %d\n", resp.Status)
			printf(cmd.OutOrStdout(), "%s\n", resp.Body)
			return nil
		},
	}
}
