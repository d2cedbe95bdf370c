package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"legal_reporting/internal/adapters/csvfile"
	"legal_reporting/internal/adapters/observability"
	redisad "legal_reporting/internal/adapters/redis"
	"legal_reporting/internal/app"
	"legal_reporting/internal/domain"
	"legal_reporting/internal/shared"
	mysqlrepo "legal_reporting/internal/storage/mysql"
)

// env is built once per invocation, after argument validation.
type env struct {
	cfg  shared.Config
	db   *sqlx.DB
	repo *mysqlrepo.Repo
	svc  *app.PipelineService
	reg  *prometheus.Registry
	lock *redisad.Lock
}

func (e *env) close() {
	if e.lock != nil {
		_ = e.lock.Close()
	}
	if e.db != nil {
		_ = e.db.Close()
	}
}

// newRootCmd returns the command tree and a cleanup for whatever it opened.
func newRootCmd() (*cobra.Command, func()) {
	e := &env{}

	root := &cobra.Command{
		Use:   "ingestor <csv>",
		Short: "Load a vendor review export into the reporting store",
		Long: "With a single CSV argument the file is merged into users, businesses and reviews\n" +
			"inside one transaction. The subcommands run the staged pipeline instead.",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// arguments are valid by now; later failures are not usage errors
			cmd.SilenceUsage = true
			return e.open(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			n, err := e.svc.Ingest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			e.observe(cmd, "ingest", n, start)
			log.Info().Int("rows", n).Msg("rows processed")
			return nil
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "stage <csv>",
			Short: "Append the file to the staging table under a new batch id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				start := time.Now()
				res, err := e.svc.Stage(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				e.observe(cmd, "stage", res.Rows, start)
				fmt.Fprintf(cmd.OutOrStdout(), "staged %d rows (batch %s)\n", res.Rows, res.BatchID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "normalize",
			Short: "Rebuild users, businesses and reviews from the staging table",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				start := time.Now()
				res, err := e.svc.Normalize(cmd.Context())
				if err != nil {
					return err
				}
				e.observe(cmd, "normalize", res.Reviews, start)
				fmt.Fprintf(cmd.OutOrStdout(), "normalized %d staging rows into %d users, %d businesses, %d reviews\n",
					res.StagingRows, res.Users, res.Businesses, res.Reviews)
				return nil
			},
		},
		&cobra.Command{
			Use:   "setup <csv>",
			Short: "Drop and recreate every table, then stage and normalize the file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				start := time.Now()
				res, err := e.svc.Setup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				e.observe(cmd, "setup", res.Normalize.Reviews, start)
				fmt.Fprintf(cmd.OutOrStdout(), "setup complete: %d rows staged, %d reviews\n", res.Stage.Rows, res.Normalize.Reviews)
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Drop and recreate every table, staging history included",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := e.svc.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "tables reset")
				return nil
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Print row counts of every table",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := e.repo.TableCounts(cmd.Context())
				if err != nil {
					return err
				}
				printCounts(cmd, c)
				return nil
			},
		},
	)
	return root, e.close
}

func (e *env) open(cmd *cobra.Command) error {
	cfg, err := shared.Load()
	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "ingestor")
	observability.SetLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	e.cfg = cfg

	e.db, err = mysqlrepo.Open(cmd.Context(), cfg.MySQLDSN)
	if err != nil {
		return err
	}
	schema, err := mysqlrepo.NewSchema(cfg.MySQLDSN)
	if err != nil {
		return err
	}
	e.repo = mysqlrepo.New(e.db, cfg.BatchSize)
	e.reg = observability.InitRegistry()

	var lock domain.RunLock
	if cfg.RedisAddr != "" {
		e.lock = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.LockTTL)
		lock = e.lock
	}
	e.svc = app.NewPipelineService(csvfile.New(), e.repo, schema, lock)

	log.Debug().
		Str("command", cmd.Name()).
		Bool("run_lock", lock != nil).
		Int("batch_size", cfg.BatchSize).
		Msg("ingestor starting")
	return nil
}

// observe records the run and pushes it when a Pushgateway is configured.
// A failed push is logged, never fatal.
func (e *env) observe(cmd *cobra.Command, stage string, rows int, start time.Time) {
	observability.ObservePipeline(stage, rows, time.Since(start))
	if err := observability.Push(cmd.Context(), e.cfg.PushGateway, "ingestor", e.reg); err != nil {
		log.Warn().Err(err).Str("gateway", e.cfg.PushGateway).Msg("metrics push failed")
	}
}

func printCounts(cmd *cobra.Command, c domain.TableCounts) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader([]string{"table", "rows"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk([][]string{
		{"staging_reviews", strconv.Itoa(c.StagingReviews)},
		{"users", strconv.Itoa(c.Users)},
		{"businesses", strconv.Itoa(c.Businesses)},
		{"reviews", strconv.Itoa(c.Reviews)},
	})
	table.Render()
}
