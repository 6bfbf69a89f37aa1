package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cat %s (git %s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		},
	}
}
