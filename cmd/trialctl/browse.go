package main

import (
	"github.com/spf13/cobra"
)

func newBrowseCmd(opts *options, newDeps depsFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Print the public URL of the trial app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := loadNode(cmd, opts, newDeps)
			if err != nil {
				return err
			}
			return node.Browse(cmd.Context())
		},
	}
}
