package cli

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"dune-client/internal/domain"
)

func newNetworksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List supported networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			type networkJSON struct {
				ID   int    `json:"id"`
				Name string `json:"name"`
			}
			var (
				rows [][]string
				out  []networkJSON
			)
			for _, n := range domain.Networks() {
				rows = append(rows, []string{strconv.Itoa(n.ID()), n.String()})
				out = append(out, networkJSON{ID: n.ID(), Name: n.String()})
			}
			return printRows(cmd, os.Stdout, []string{"ID", "NAME"}, rows, out)
		},
	}
}
