package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shpitdev/company-enricher/internal/app"
	"github.com/shpitdev/company-enricher/internal/store"
	"github.com/shpitdev/company-enricher/pkg/pipeline/schema"
)

var historyCmd = &cobra.Command{
	Use:   "history [RUN_ID]",
	Short: "List past runs or show and re-export one run",
	Long: `History reads the run journal. Without arguments it lists recent runs.
With a run ID it lists that run's companies; --export writes them to a new
spreadsheet using the current locale and column settings.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.Int("limit", 20, "number of runs to list, 0 lists all")
	f.String("export", "", "write the run's companies to this .xlsx or .csv file")
	f.String("locale", "", "header and placeholder language: en or ru (env: OUTPUT_LOCALE)")
	f.Bool("include-sources", false, "append a sources column (env: INCLUDE_SOURCES)")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return usageErr(fmt.Errorf("no run journal configured (set --store or STORE_PATH)"))
	}
	if f := cmd.Flags(); f.Changed("locale") {
		cfg.Output.Locale, _ = f.GetString("locale")
	}
	if f := cmd.Flags(); f.Changed("include-sources") {
		cfg.Output.IncludeSources, _ = f.GetBool("include-sources")
	}

	ctx := cmd.Context()
	journal, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() {
		_ = journal.Close()
	}()

	out := cmd.OutOrStdout()
	exportPath, _ := cmd.Flags().GetString("export")

	if len(args) == 0 {
		if exportPath != "" {
			return usageErr(fmt.Errorf("--export requires a RUN_ID"))
		}
		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := journal.Runs(ctx, limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			_, _ = fmt.Fprintln(out, "no runs recorded")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "RUN\tSTARTED\tSTATE\tDONE\tFAILED\tTOTAL\tINPUT")
		for _, r := range runs {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				r.ID, r.StartedAt.Format(time.DateTime), runState(r), r.Done, r.Failed, r.Total, r.Input)
		}
		return tw.Flush()
	}

	runID := args[0]
	if exportPath != "" {
		contract := schema.ContractFor(schema.NormalizeLocale(cfg.Output.Locale), cfg.Output.IncludeSources)
		n, err := app.ExportRun(ctx, journal, runID, exportPath, contract)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "%s: %d companies from run %s\n", exportPath, n, runID)
		return nil
	}

	run, err := journal.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	items, err := journal.Items(ctx, runID)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "run %s (%s) %s -> %s, model %s\n", run.ID, runState(run), run.Input, run.Output, run.Model)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCOMPANY\tSTATUS\tERROR")
	for _, c := range items {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.ID, c.Name, c.Status, c.Error)
	}
	return tw.Flush()
}

func runState(r store.Run) string {
	if r.FinishedAt.IsZero() {
		return "incomplete"
	}
	return "finished"
}
