package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wenwu/saas-platform/trialapp-service/internal/client"
	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
	"github.com/wenwu/saas-platform/trialapp-service/internal/tree"
)

const tokenEnv = "TRIAL_SESSION_TOKEN"

type options struct {
	token       string
	metadataURL string
	timeout     time.Duration
}

// depsFunc builds the node collaborators for one invocation
type depsFunc func(cmd *cobra.Command, opts *options) tree.Deps

func productionDeps(cmd *cobra.Command, opts *options) tree.Deps {
	return tree.Deps{
		Fetcher: client.NewTrialClient(opts.metadataURL, opts.timeout),
		Factory: client.NewSCMFactory(opts.timeout),
		Opener: tree.URLOpenerFunc(func(ctx context.Context, url string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), url)
			return err
		}),
	}
}

func newRootCmd(newDeps depsFunc) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "trialctl",
		Short:         "Inspect a trial app from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.token, "token", "", "trial session token (default $"+tokenEnv+")")
	root.PersistentFlags().StringVar(&opts.metadataURL, "metadata-url", models.DefaultMetadataURL, "trial service metadata endpoint")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "HTTP timeout")

	root.AddCommand(
		newTreeCmd(opts, newDeps),
		newBrowseCmd(opts, newDeps),
		newSettingsCmd(opts, newDeps),
	)
	return root
}

// loadNode resolves the token and attaches to the trial app
func loadNode(cmd *cobra.Command, opts *options, newDeps depsFunc) (*tree.TrialAppNode, error) {
	token := opts.token
	if token == "" {
		token = os.Getenv(tokenEnv)
	}
	if token == "" {
		return nil, errors.New("no session token: pass --token or set " + tokenEnv)
	}
	return tree.NewTrialAppNode(cmd.Context(), newDeps(cmd, opts), token)
}
