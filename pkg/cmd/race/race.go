package race

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/cmd/util"
	"github.com/mpapenbr/rally-manager-go/pkg/config"
	"github.com/mpapenbr/rally-manager-go/pkg/db/postgres"
	"github.com/mpapenbr/rally-manager-go/pkg/model"
	bobRepos "github.com/mpapenbr/rally-manager-go/pkg/repository/bob"
	raceService "github.com/mpapenbr/rally-manager-go/pkg/service/race"
	"github.com/mpapenbr/rally-manager-go/pkg/service/registry"
	"github.com/mpapenbr/rally-manager-go/pkg/simulation"
)

var outputFormat string

func NewRaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "race",
		Short: "race related commands",
	}
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text",
		"output format (text, json)")
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newResultsCmd())
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <raceID>",
		Short: "simulates a race and settles the team budgets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raceID, err := parseID(args[0])
			if err != nil {
				return err
			}
			_, sqlLogger, err := util.SetupLogger()
			if err != nil {
				return err
			}
			pool, err := util.OpenPool(cmd.Context(),
				postgres.WithTracer(sqlLogger, log.DebugLevel))
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := raceService.NewService(
				bobRepos.NewRepositoriesFromPool(pool),
				bobRepos.NewTransactionManagerFromPool(pool),
				raceService.WithEngine(simulation.NewEngine(
					simulation.WithVariance(
						simulation.NewUniformVariance(uint64(config.RandomSeed))))))
			settlement, err := svc.Run(cmd.Context(), raceID)
			var notRecorded *raceService.ResultsNotRecordedError
			if errors.As(err, &notRecorded) {
				log.Error("budgets are settled, results are missing",
					log.String("runID", notRecorded.Settlement.RunID.String()))
				_ = printSettlement(cmd.OutOrStdout(), notRecorded.Settlement)
				return err
			}
			if err != nil {
				return err
			}
			return printSettlement(cmd.OutOrStdout(), settlement)
		},
	}
	cmd.Flags().Int64Var(&config.RandomSeed, "seed", 0,
		"seed for the race-day variance (0: time based)")
	return cmd
}

func newResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results <raceID>",
		Short: "shows the recorded results of a race",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raceID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, _, err = util.SetupLogger(); err != nil {
				return err
			}
			pool, err := util.OpenPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			reg := registry.NewService(
				bobRepos.NewRepositoriesFromPool(pool),
				bobRepos.NewTransactionManagerFromPool(pool))
			results, err := reg.Results(cmd.Context(), raceID)
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), results)
		},
	}
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid race id %q", arg)
	}
	return id, nil
}

func printSettlement(w io.Writer, s *raceService.Settlement) error {
	if outputFormat == "json" {
		return printJSON(w, s)
	}
	o := s.Outcome
	fmt.Fprintf(w, "Race %d %q (%s, %.1f km) run %s\n\n",
		o.Race.ID, o.Race.Name, o.Race.Surface, o.Race.TrackLengthKm, s.RunID)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tVEHICLE\tTEAM\tTIME\tPRIZE")
	for i := range o.Participants {
		p := &o.Participants[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.3f\t%s\n",
			p.Position, p.Entry.Model, p.Entry.TeamName, p.FinishTime, p.Prize.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(o.Excluded) > 0 {
		fmt.Fprintln(w, "\nExcluded (budget below entry fee):")
		for i := range o.Excluded {
			fmt.Fprintf(w, "  %s (%s)\n", o.Excluded[i].Model, o.Excluded[i].TeamName)
		}
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TEAM\tBEFORE\tFEES\tPRIZES\tAFTER")
	for _, t := range o.Settlements {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.TeamName,
			t.Initial.StringFixed(2), t.Fees.StringFixed(2),
			t.Prizes.StringFixed(2), t.Final.StringFixed(2))
	}
	return tw.Flush()
}

func printResults(w io.Writer, results []*model.ResultRecord) error {
	if outputFormat == "json" {
		return printJSON(w, results)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tRECORDED\tPOS\tVEHICLE\tTEAM\tTIME\tPRIZE")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%.3f\t%s\n",
			r.RunID, r.RecordedAt.Format("2006-01-02 15:04:05"), r.Position,
			r.VehicleID, r.TeamID, r.FinishTime, r.Prize.StringFixed(2))
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
