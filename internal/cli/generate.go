package cli

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		method string
		path   string
		at     int64
		mask   int
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print an x-client-transaction-id for a method and path",
		Example: `  xtid generate --path /i/api/1.1/account/verify_credentials.json
  xtid generate --method POST --path /i/api/graphql/abc/CreateTweet --time 100000000 --mask 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !strings.HasPrefix(path, "/") {
				return errors.New("--path must start with /")
			}
			if mask < -1 || mask > 255 {
				return errors.New("--mask must be in 0..255")
			}
			if at < -1 {
				return errors.New("--time must not be negative")
			}
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			method = strings.ToUpper(method)

			var id string
			if at < 0 && mask < 0 {
				id, err = c.Signer().GenerateID(cmd.Context(), method, path)
				if err != nil {
					return err
				}
			} else {
				sc := c.Signer().Context()
				if at < 0 {
					at = nowEpochSeconds()
				}
				if mask < 0 {
					mask = rand.IntN(256)
				}
				id = sc.GenerateIDAt(method, path, at, byte(mask))
			}
			printf(cmd.OutOrStdout(), "%s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&method, "method", "m", http.MethodGet, "HTTP method")
	cmd.Flags().StringVarP(&path, "path", "p", "", "URL path to sign, without query")
	cmd.Flags().Int64Var(&at, "time", -1, "seconds since the signing epoch (default now)")
	cmd.Flags().IntVar(&mask, "mask", -1, "XOR mask byte (default random)")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}
