package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"property-valuation/api"
	"property-valuation/config"
	"property-valuation/models"
	"property-valuation/services"
	"property-valuation/storage"
	"property-valuation/utils"
)

type rootOptions struct {
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "valuation",
		Short:         "Postcode pricing recommendations and local-average property valuations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	cmd.AddCommand(
		newServeCommand(opts),
		newSeriesCommand(opts),
		newValueCommand(opts),
		newBatchCommand(opts),
		newReportCommand(opts),
	)
	return cmd
}

// load reads configuration and wires the pipeline. Commands call it after
// validating their own arguments.
func (o *rootOptions) load(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return newApp(ctx, cfg, utils.NewLoggerWithLevel(cfg.LogLevel))
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			srv := api.NewServer(addr, a.service, a.metrics, a.logger)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
				a.logger.Info("[api] Shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default HTTP_ADDR)")
	return cmd
}

func newSeriesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "series <postcode>",
		Short: "Fetch and repair the price series for a postcode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.service.GetPricingData(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := struct {
				*models.PricingResult
				Recommendation *models.PriceRecommendation `json:"recommendation"`
			}{res, a.service.GetRecommendedPrice(res.Series)}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func newValueCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "value <postcode> <floor-area-sqft>",
		Short: "Project the local-average value of a property",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sqft, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("floor area %q: %w", args[1], err)
			}

			a, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.service.Estimate(cmd.Context(), args[0], sqft)
			if err != nil {
				a.logger.Debug("[value] %s: %v", args[0], err)
				fmt.Fprintln(cmd.OutOrStdout(), services.NotAvailable)
				return nil
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s\n", strconv.FormatFloat(rec.LocalAverage, 'f', 0, 64))
			fmt.Fprintf(w, "  %.0f sqm at %.2f per sqm (%d, %s confidence, %d sales, %s data)\n",
				rec.FloorAreaSqm, rec.PricePerSqm, rec.Year, rec.Confidence, rec.SampleSize, rec.Source)
			return nil
		},
	}
}

func newBatchCommand(opts *rootOptions) *cobra.Command {
	var (
		input  string
		output string
		store  bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Value every property in a CSV of reference,postcode,floor_area_sqft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			props, err := storage.LoadProperties(input)
			if err != nil {
				return err
			}

			a, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			a.logger.Info("[batch] %d properties | concurrency: %d | rate: %dms | retries: %d",
				len(props), a.cfg.MaxConcurrency, a.cfg.RateLimitMs, a.cfg.MaxRetries)

			valuer := services.NewBatchValuer(a.valuator, a.logger, a.cfg.MaxConcurrency, a.cfg.RateLimitMs, a.cfg.MaxRetries)
			records := valuer.Value(cmd.Context(), props)

			if output == "" {
				output = a.cfg.CSVOutputPath
			}
			if err := writeRecords(records, output, store, a); err != nil {
				return err
			}

			summary := services.NewSummaryService(a.logger)
			summary.Print(summary.Generate(records))
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "CSV of properties to value")
	cmd.Flags().StringVar(&output, "output", "", "CSV output path (default CSV_OUTPUT_PATH)")
	cmd.Flags().BoolVar(&store, "store", false, "also upsert results into PostgreSQL")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newReportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Summarise the valuation history stored in PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			pgWriter, err := storage.NewPostgresWriter(a.cfg.DSN())
			if err != nil {
				a.logger.Error("[report] Failed to connect to PostgreSQL: %v", err)
				return err
			}
			defer pgWriter.Close()

			records, err := pgWriter.FetchAll()
			if err != nil {
				return err
			}

			summary := services.NewSummaryService(a.logger)
			summary.Print(summary.Generate(records))
			return nil
		},
	}
}

func writeRecords(records []*models.ValuationRecord, output string, store bool, a *app) error {
	writers := make([]storage.ValuationWriter, 0, 2)

	csvWriter, err := storage.NewCSVWriter(output)
	if err != nil {
		return err
	}
	writers = append(writers, csvWriter)

	if store {
		pgWriter, err := storage.NewPostgresWriter(a.cfg.DSN())
		if err != nil {
			_ = csvWriter.Close()
			return err
		}
		writers = append(writers, pgWriter)
	}

	var errs []error
	for _, w := range writers {
		if err := w.Write(records); err != nil {
			errs = append(errs, err)
		}
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	a.logger.Info("[batch] Wrote %d records to %s", len(records), output)
	if store {
		a.logger.Info("[batch] Records stored in PostgreSQL (table: valuations)")
	}
	return nil
}
