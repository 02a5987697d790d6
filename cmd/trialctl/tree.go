package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
	"github.com/wenwu/saas-platform/trialapp-service/internal/tree"
)

func newTreeCmd(opts *options, newDeps depsFunc) *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the trial app and its children",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := loadNode(cmd, opts, newDeps)
			if err != nil {
				return err
			}
			view, err := tree.View(cmd.Context(), node, depth)
			if err != nil {
				return err
			}
			printView(cmd.OutOrStdout(), view, 0)
			return nil
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", 2, "levels of children to load")
	return cmd
}

func printView(w io.Writer, v models.TreeNodeView, indent int) {
	line := strings.Repeat("  ", indent) + v.Label
	if v.Description != "" {
		line += " (" + v.Description + ")"
	}
	if v.Error != "" {
		line += " [" + v.Error + "]"
	}
	fmt.Fprintln(w, line)
	for _, c := range v.Children {
		printView(w, c, indent+1)
	}
}
