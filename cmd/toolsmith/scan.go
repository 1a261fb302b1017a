package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/toolsmith/internal/discovery"
)

func newScanCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "scan DIR...",
		Short: "Scan app sources for whitelisted procedures and write a manifest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			procs, failures := discovery.ScanSources(cmd.Context(), args)
			for _, f := range failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", f.Source, f.Message)
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create manifest: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := discovery.WriteManifest(w, discovery.ManifestFrom(procs)); err != nil {
				return fmt.Errorf("failed to write manifest: %w", err)
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d procedures to %s\n", len(procs), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Manifest file to write (default stdout)")
	return cmd
}
