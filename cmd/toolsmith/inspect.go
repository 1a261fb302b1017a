package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/toolsmith/internal/app"
	"github.com/bobmcallan/toolsmith/internal/models"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withRefreshedApp opens the application, runs one refresh and hands it to fn.
func withRefreshedApp(cmd *cobra.Command, flags *globalFlags, fn func(*app.App, models.RegistryDiff) error) error {
	application, err := flags.openApp()
	if err != nil {
		return err
	}
	defer application.Close()

	diff, err := application.Service.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	return fn(application, diff)
}

func newDiscoverCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Run discovery once and report the resulting registry status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRefreshedApp(cmd, flags, func(a *app.App, diff models.RegistryDiff) error {
				return printJSON(cmd.OutOrStdout(), struct {
					Diff   models.RegistryDiff   `json:"diff"`
					Status models.RegistryStatus `json:"status"`
				}{diff, a.Service.Status()})
			})
		},
	}
}

func newOperationsCmd(flags *globalFlags) *cobra.Command {
	var kind, target string

	cmd := &cobra.Command{
		Use:   "operations",
		Short: "List generated operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k := models.OperationKind(kind)
			if k != "" && !models.ValidOperationKind(k) {
				return fmt.Errorf("unknown operation kind %q", kind)
			}
			return withRefreshedApp(cmd, flags, func(a *app.App, _ models.RegistryDiff) error {
				out := cmd.OutOrStdout()
				for _, op := range a.Service.ListOperations(k, target) {
					fmt.Fprintf(out, "%-40s %-10s %s\n", op.Name, op.Kind, op.Description)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Filter by operation kind (list, get, create, update, delete, procedure)")
	cmd.Flags().StringVar(&target, "target", "", "Filter by target resource type or procedure")
	return cmd
}

func newDescribeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "describe NAME",
		Short: "Print the input schema of an operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRefreshedApp(cmd, flags, func(a *app.App, _ models.RegistryDiff) error {
				schema, err := a.Service.DescribeOperation(args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), schema)
			})
		},
	}
}

func newExecCmd(flags *globalFlags) *cobra.Command {
	var rawArgs string

	cmd := &cobra.Command{
		Use:   "exec NAME",
		Short: "Execute an operation and print the result envelope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params map[string]interface{}
			if err := json.Unmarshal([]byte(rawArgs), &params); err != nil {
				return fmt.Errorf("--args must be a JSON object: %w", err)
			}
			if params == nil {
				params = map[string]interface{}{}
			}
			return withRefreshedApp(cmd, flags, func(a *app.App, _ models.RegistryDiff) error {
				env := a.Service.Execute(cmd.Context(), args[0], params)
				if err := printJSON(cmd.OutOrStdout(), env); err != nil {
					return err
				}
				if !env.OK {
					return fmt.Errorf("%s failed: %s", args[0], env.ErrorKind)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&rawArgs, "args", "{}", "Operation arguments as a JSON object")
	return cmd
}
