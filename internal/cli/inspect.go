package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go-xclient/xtid"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show the signing context scraped from x.com",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			sc := c.Signer().Context()
			w := cmd.OutOrStdout()
			printf(w, "row index:        %d\n", sc.RowIndex())
			printf(w, "key byte indices: %v\n", sc.KeyByteIndices())
			printf(w, "key length:       %d\n", len(sc.KeyBytes()))
			printf(w, "animation key:    %s\n", sc.AnimationKey())
			printf(w, "epoch seconds:    %d\n", nowEpochSeconds())
			return nil
		},
	}
}

func nowEpochSeconds() int64 {
	return xtid.EpochSeconds(time.Now())
}
