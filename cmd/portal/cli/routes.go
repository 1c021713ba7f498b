package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tkingovr/portal/internal/routes"
)

var routesOutput string

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Compile the route table and print it",
	Long: `Compile the route table and print each route in evaluation order with
its methods, action, captured values and guards. Compilation errors are
reported the same way serve would report them.`,
	Example: `  portal routes -c portal.yaml
  portal routes -c portal.yaml -o yaml`,
	RunE: runRoutes,
}

func init() {
	routesCmd.Flags().StringVarP(&routesOutput, "output", "o", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(routesCmd)
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, _, err := routes.FromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("compiling routes: %w", err)
	}
	infos := table.Describe()

	out := cmd.OutOrStdout()
	switch routesOutput {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(infos); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tMETHODS\tPATH\tACTION\tCAPTURES\tGUARDS")
		for _, r := range infos {
			methods := "ANY"
			if len(r.Methods) > 0 {
				methods = strings.Join(r.Methods, ",")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Name, methods, r.Path, r.Action, dash(r.Captures), dash(r.Guards))
		}
		return tw.Flush()
	}
	return fmt.Errorf("unknown output format %q", routesOutput)
}

func dash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}
