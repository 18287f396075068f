package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/graderqueue/internal/auth"
)

func newPlatformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "platform",
		Short: "Manage client platforms",
	}

	cmd.AddCommand(newPlatformAddCmd())
	cmd.AddCommand(newPlatformListCmd())
	return cmd
}

func newPlatformAddCmd() *cobra.Command {
	var (
		configPath    string
		keyFile       string
		restrictPaths []string
		forceTag      string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a client platform",
		Long:  "Registers a platform allowed to submit sealed requests, signed with the private half of --public-key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlatformAdd(cmd, configPath, auth.PlatformOpts{
				Name:          args[0],
				RestrictPaths: restrictPaths,
				ForceTag:      forceTag,
			}, keyFile)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to grader queue config file")
	cmd.Flags().StringVar(&keyFile, "public-key", "", "PEM file holding the platform's RSA public key")
	cmd.Flags().StringSliceVar(&restrictPaths, "restrict-path", nil, "path prefix the platform's jobs are limited to (repeatable)")
	cmd.Flags().StringVar(&forceTag, "force-tag", "", "tag added to every job of this platform")
	cmd.MarkFlagRequired("public-key")
	return cmd
}

func runPlatformAdd(cmd *cobra.Command, configPath string, opts auth.PlatformOpts, keyFile string) error {
	pem, err := os.ReadFile(keyFile)
	if err != nil {
		return fmt.Errorf("read public key: %w", err)
	}
	opts.PublicKeyPEM = string(pem)

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	p, err := auth.RegisterPlatform(cmd.Context(), gormDB, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered platform %q with id %d\n", p.Name, p.ID)
	return nil
}

func newPlatformListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List client platforms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlatformList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to grader queue config file")
	return cmd
}

func runPlatformList(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	platforms, err := auth.ListPlatforms(cmd.Context(), gormDB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(platforms) == 0 {
		fmt.Fprintln(out, "No platforms registered.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tRESTRICT PATHS\tFORCE TAG")
	for _, p := range platforms {
		forced := "-"
		if p.ForceTagID != nil {
			forced = fmt.Sprintf("%d", *p.ForceTagID)
		}
		paths := p.RestrictPaths
		if paths == "" {
			paths = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, paths, forced)
	}
	return w.Flush()
}
