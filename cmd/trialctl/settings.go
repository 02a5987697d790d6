package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newSettingsCmd(opts *options, newDeps depsFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage application settings",
	}

	var showValues bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List application settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := loadNode(cmd, opts, newDeps)
			if err != nil {
				return err
			}
			settings, err := node.SettingsNode().List(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range sortedKeys(settings) {
				v := "Hidden value"
				if showValues {
					v = settings[k]
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, v)
			}
			return nil
		},
	}
	list.Flags().BoolVar(&showValues, "show-values", false, "print setting values")

	set := &cobra.Command{
		Use:   "set KEY=VALUE...",
		Short: "Add or change application settings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := make(map[string]string, len(args))
			for _, arg := range args {
				k, v, ok := strings.Cut(arg, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid setting %q, expected KEY=VALUE", arg)
				}
				updates[k] = v
			}
			return updateSettings(cmd, opts, newDeps, func(settings map[string]string) {
				for k, v := range updates {
					settings[k] = v
				}
			})
		},
	}

	unset := &cobra.Command{
		Use:   "unset KEY...",
		Short: "Remove application settings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateSettings(cmd, opts, newDeps, func(settings map[string]string) {
				for _, k := range args {
					delete(settings, k)
				}
			})
		},
	}

	cmd.AddCommand(list, set, unset)
	return cmd
}

// updateSettings applies edit to the current settings and writes the result back
func updateSettings(cmd *cobra.Command, opts *options, newDeps depsFunc, edit func(map[string]string)) error {
	node, err := loadNode(cmd, opts, newDeps)
	if err != nil {
		return err
	}
	settingsNode := node.SettingsNode()

	settings, err := settingsNode.List(cmd.Context())
	if err != nil {
		return err
	}
	edit(settings)

	updated, err := settingsNode.Update(cmd.Context(), settings)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d settings saved\n", len(updated))
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
