package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	var byAgent, byRole bool
	var format string

	costReportCmd := &cobra.Command{
		Use:   "cost-report",
		Short: "Report accumulated cost from the persistence store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store := openStore(ctx)
			if store == nil {
				return fmt.Errorf("database not configured (set DB_PASSWORD and friends)")
			}

			total, err := store.TotalCost(ctx)
			if err != nil {
				return err
			}

			rows := [][]string{{"scope", "cost_usd"}}
			rows = append(rows, []string{"total", fmt.Sprintf("%.4f", total)})

			if byRole {
				costs, err := store.CostByRole(ctx)
				if err != nil {
					return err
				}
				for _, role := range sortedCostKeys(costs) {
					rows = append(rows, []string{"role:" + role, fmt.Sprintf("%.4f", costs[role])})
				}
			}

			if byAgent {
				records, err := store.ListAgents(ctx, "", "")
				if err != nil {
					return err
				}
				for _, record := range records {
					rows = append(rows, []string{"agent:" + record.AgentID, fmt.Sprintf("%.4f", record.TotalCostUSD)})
				}
			}

			return renderReport(rows, format)
		},
	}
	costReportCmd.Flags().BoolVar(&byAgent, "by-agent", false, "include per-agent breakdown")
	costReportCmd.Flags().BoolVar(&byRole, "by-role", false, "include per-role breakdown")
	costReportCmd.Flags().StringVar(&format, "format", "table", "output format: table, json, or csv")
	rootCmd.AddCommand(costReportCmd)
}

func renderReport(rows [][]string, format string) error {
	switch format {
	case "json":
		out := make([]map[string]any, 0, len(rows)-1)
		for _, row := range rows[1:] {
			cost, _ := strconv.ParseFloat(row[1], 64)
			out = append(out, map[string]any{"scope": row[0], "cost_usd": cost})
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil

	case "csv":
		w := csv.NewWriter(os.Stdout)
		if err := w.WriteAll(rows); err != nil {
			return err
		}
		w.Flush()
		return w.Error()

	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, row := range rows {
			fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
		}
		return w.Flush()

	default:
		return fmt.Errorf("unknown format %q (want table, json, or csv)", format)
	}
}

func sortedCostKeys(costs map[string]float64) []string {
	keys := make([]string, 0, len(costs))
	for k := range costs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return costs[keys[i]] > costs[keys[j]] })
	return keys
}
