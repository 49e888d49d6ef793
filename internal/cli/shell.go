package cli

import (
	"github.com/Wa4h1h/go-tftp-loader/pkg/client"
	"github.com/spf13/cobra"
)

func shellCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive upload shell, connected to the profile host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			trace, _ := cmd.Flags().GetBool("trace")

			dial := func(host string, port int) (client.Connector, error) {
				c, err := a.newClient(host, port, trace)
				if err != nil {
					return nil, err
				}

				return c, nil
			}

			conn, err := dial(a.profile.Host, a.profile.Port)
			if err != nil {
				a.l.Warnf("not connected to %s: %s", a.profile.Host, err.Error())
			}

			return client.NewCli(a.l, cmd.InOrStdin(), cmd.OutOrStdout(), dial, conn).Read(cmd.Context())
		},
	}
}
