package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"orcamento/internal/amqp"
	"orcamento/internal/backend"
	"orcamento/internal/budget"
	"orcamento/internal/cli"
	"orcamento/internal/config"
	"orcamento/internal/core"
	"orcamento/internal/log"
	"orcamento/internal/services"
	"orcamento/internal/storage"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	backend  string
	dbPath   string
	owner    string
	logLevel string
	publish  bool
}

// session is an opened backend with the service on top of it.
type session struct {
	svc     *services.BudgetService
	local   ledgerWriter
	cleanup func()
}

// ledgerWriter feeds the local transaction and goal tables used when no
// collaborator service is configured. Both local stores implement it.
type ledgerWriter interface {
	RecordTransaction(ctx context.Context, t core.Transaction) (int64, error)
	CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
	AddContribution(ctx context.Context, owner string, c core.Contribution) (core.Contribution, error)
}

func rootCmd() *cobra.Command {
	cli.LoadEnvFile()
	cfg := config.Load()
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "orcamentoctl",
		Short:         "Operate the monthly budget engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", cfg.DataBackend, "Data backend (memory, sqlite)")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", cfg.SQLiteDBPath, "SQLite database path")
	cmd.PersistentFlags().StringVar(&opts.owner, "owner", "", "Owner scope of the budget")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.publish, "publish", cfg.AMQPURL != "", "Publish change events to AMQP_URL")

	cmd.AddCommand(
		migrateCmd(opts),
		summaryCmd(cfg, opts),
		setTargetCmd(cfg, opts),
		setGroupCmd(cfg, opts),
		setIncomeCmd(cfg, opts),
		recordTransactionCmd(cfg, opts),
		createGoalCmd(cfg, opts),
		addContributionCmd(cfg, opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "orcamentoctl version %s\n", version)
			},
		},
	)
	return cmd
}

func newLogger(opts *options, w io.Writer) *log.Logger {
	level, err := log.ParseLevel(opts.logLevel)
	if err != nil {
		level = slog.LevelWarn
	}
	return log.New(log.Config{Level: level, Component: log.ComponentCLI, Output: w})
}

func openSession(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts *options) (*session, error) {
	if strings.TrimSpace(opts.owner) == "" {
		return nil, fmt.Errorf("--owner is required")
	}
	logger := newLogger(opts, cmd.ErrOrStderr())

	appCfg := *cfg
	appCfg.DataBackend = opts.backend
	appCfg.SQLiteDBPath = opts.dbPath
	bcfg, err := backend.FromAppConfig(&appCfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	svcOpts := []services.Option{services.WithLogger(logger)}
	cleanup := func() { _ = res.Close() }
	if opts.publish && cfg.AMQPURL != "" {
		client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.Logger)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("connect to AMQP: %w", err)
		}
		svcOpts = append(svcOpts, services.WithPublisher(client))
		cleanup = func() {
			_ = client.Close()
			_ = res.Close()
		}
	}

	assembler := budget.NewAssembler(res.Backend.Store, res.Backend.Actuals, res.Backend.Goals)
	local, _ := res.Backend.Store.(ledgerWriter)
	return &session{
		svc:     services.NewBudgetService(res.Backend.Store, assembler, svcOpts...),
		local:   local,
		cleanup: cleanup,
	}, nil
}

// withSession runs fn against an opened session bounded by a timeout.
func withSession(cmd *cobra.Command, cfg *config.Config, opts *options, fn func(ctx context.Context, s *session) (any, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	s, err := openSession(ctx, cmd, cfg, opts)
	if err != nil {
		return err
	}
	defer s.cleanup()

	v, err := fn(ctx, s)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addPeriodFlags(cmd *cobra.Command, month, year *int) {
	now := time.Now().UTC()
	cmd.Flags().IntVar(month, "month", int(now.Month()), "Budget month (1-12)")
	cmd.Flags().IntVar(year, "year", now.Year(), "Budget year")
}

func migrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := storage.RunMigrations(opts.dbPath); err != nil {
					return err
				}
				return printVersion(cmd, opts.dbPath)
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Revert the last migrations (default 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil {
						return fmt.Errorf("steps must be an integer: %w", err)
					}
					steps = n
				}
				if err := storage.RollbackMigrations(opts.dbPath, steps); err != nil {
					return err
				}
				return printVersion(cmd, opts.dbPath)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return printVersion(cmd, opts.dbPath)
			},
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, dbPath string) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database %s: %w", dbPath, err)
	}
	v, dirty, err := storage.MigrationVersion(dbPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", v, dirty)
	return nil
}

func summaryCmd(cfg *config.Config, opts *options) *cobra.Command {
	var (
		month, year int
		rule        bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the monthly budget summary as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, cfg, opts, func(ctx context.Context, s *session) (any, error) {
				return s.svc.Summary(ctx, budget.Request{
					Owner:       opts.owner,
					Period:      core.Period{Month: month, Year: year},
					RuleEnabled: rule,
				})
			})
		},
	}
	addPeriodFlags(cmd, &month, &year)
	cmd.Flags().BoolVar(&rule, "rule", false, "Apply the 50/30/20 rule")
	return cmd
}

func setTargetCmd(cfg *config.Config, opts *options) *cobra.Command {
	var (
		month, year int
		categoryID  int64
		amount      string
	)
	cmd := &cobra.Command{
		Use:   "set-target",
		Short: "Set the planned amount of a category for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.ParseAmount(amount)
			if err != nil {
				return core.InvalidField("amount", err)
			}
			return withSession(cmd, cfg, opts, func(ctx context.Context, s *session) (any, error) {
				return s.svc.SetCategoryTarget(ctx, services.TargetInput{
					Owner:      opts.owner,
					CategoryID: categoryID,
					Period:     core.Period{Month: month, Year: year},
					Amount:     m,
				})
			})
		},
	}
	addPeriodFlags(cmd, &month, &year)
	cmd.Flags().Int64Var(&categoryID, "category", 0, "Category id")
	cmd.Flags().StringVar(&amount, "amount", "", "Target amount, e.g. 450.00")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func setGroupCmd(cfg *config.Config, opts *options) *cobra.Command {
	var (
		categoryID int64
		group      string
	)
	cmd := &cobra.Command{
		Use:   "set-group",
		Short: "Assign a category to necessities, wants or savings (none clears it)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := core.Ungrouped
			if v := strings.ToLower(strings.TrimSpace(group)); v != "none" && v != "" {
				parsed, err := core.ParseBudgetGroup(v)
				if err != nil {
					return core.InvalidField("group", err)
				}
				g = parsed
			}
			return withSession(cmd, cfg, opts, func(ctx context.Context, s *session) (any, error) {
				return s.svc.SetBudgetGroup(ctx, opts.owner, categoryID, g)
			})
		},
	}
	cmd.Flags().Int64Var(&categoryID, "category", 0, "Category id")
	cmd.Flags().StringVar(&group, "group", "", "necessities, wants, savings or none")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

func setIncomeCmd(cfg *config.Config, opts *options) *cobra.Command {
	var (
		month, year int
		amount      string
	)
	cmd := &cobra.Command{
		Use:   "set-income",
		Short: "Set the planned income of a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.ParseAmount(amount)
			if err != nil {
				return core.InvalidField("amount", err)
			}
			return withSession(cmd, cfg, opts, func(ctx context.Context, s *session) (any, error) {
				return s.svc.SetPlannedIncome(ctx, opts.owner, core.Period{Month: month, Year: year}, m)
			})
		},
	}
	addPeriodFlags(cmd, &month, &year)
	cmd.Flags().StringVar(&amount, "amount", "", "Planned income, e.g. 5200.00")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// localLedger returns the session's local writer, refusing when the data is
// owned by a remote collaborator.
func localLedger(s *session, remoteURL, what string) (ledgerWriter, error) {
	if remoteURL != "" {
		return nil, fmt.Errorf("%s are read from %s; record them there", what, remoteURL)
	}
	if s.local == nil {
		return nil, fmt.Errorf("backend does not store %s locally", what)
	}
	return s.local, nil
}

func parseDateFlag(raw string) (core.Date, error) {
	if raw == "" {
		return core.DateOf(time.Now()), nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: "date", Message: "date must be YYYY-MM-DD", Err: err}
	}
	return d, nil
}

func recordTransactionCmd(cfg *config.Config, opts *options) *cobra.Command {
	var (
		categoryID         int64
		amount, date, note string
	)
	cmd := &cobra.Command{
		Use:   "record-transaction",
		Short: "Record a posted transaction in the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.ParseAmount(amount)
			if err != nil {
				return core.InvalidField("amount", err)
			}
			d, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			return withSession(cmd, cfg, opts, func(ctx context.Context, s *session) (any, error) {
				w, err := localLedger(s, cfg.TransactionsAPIURL, "transactions")
				if err != nil {
					return nil, err
				}
				id, err := w.RecordTransaction(ctx, core.Transaction{
					OwnerID:     opts.owner,
					CategoryID:  categoryID,
					Amount:      m,
					Date:        d,
					Description: note,
				})
				if err != nil {
					return nil, err
				}
				return map[string]any{"id": id, "category_id": categoryID, "amount": m, "date": d}, nil
			})
		},
	}
	cmd.Flags().Int64Var(&categoryID, "category", 0, "Category id")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount, e.g. 120.50")
	cmd.Flags().StringVar(&date, "date", "", "Posting date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&note, "description", "", "Free text description")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func createGoalCmd(cfg *config.Config, opts *options) *cobra.Command {
	var name, icon, target, targetDate string
	cmd := &cobra.Command{
		Use:   "create-goal",
		Short: "Create a savings goal in the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" {
				return &core.ValidationError{Field: "name", Message: "name is required"}
			}
			m, err := core.ParseAmount(target)
			if err != nil {
				return core.InvalidField("target", err)
			}
			goal := core.Goal{OwnerID: opts.owner, Name: name, Icon: icon, TargetAmount: m}
			if targetDate != "" {
				d, err := parseDateFlag(targetDate)
				if err != nil {
					return err
				}
				goal.TargetDate = &d
			}
			return withSession(cmd, cfg, opts, func(ctx context.Context, s *session) (any, error) {
				w, err := localLedger(s, cfg.GoalsAPIURL, "goals")
				if err != nil {
					return nil, err
				}
				g, err := w.CreateGoal(ctx, goal)
				if err != nil {
					return nil, err
				}
				return map[string]any{"id": g.ID, "name": g.Name, "target_amount": g.TargetAmount, "target_date": g.TargetDate}, nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Goal name")
	cmd.Flags().StringVar(&icon, "icon", "", "Icon name")
	cmd.Flags().StringVar(&target, "target", "", "Target amount, e.g. 12000.00")
	cmd.Flags().StringVar(&targetDate, "target-date", "", "Target date YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func addContributionCmd(cfg *config.Config, opts *options) *cobra.Command {
	var goalID, amount, date string
	cmd := &cobra.Command{
		Use:   "add-contribution",
		Short: "Record a contribution to a local goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(goalID)
			if err != nil {
				return &core.ValidationError{Field: "goal", Message: "goal must be a UUID", Err: err}
			}
			m, err := core.ParseAmount(amount)
			if err != nil {
				return core.InvalidField("amount", err)
			}
			d, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			return withSession(cmd, cfg, opts, func(ctx context.Context, s *session) (any, error) {
				w, err := localLedger(s, cfg.GoalsAPIURL, "goals")
				if err != nil {
					return nil, err
				}
				c, err := w.AddContribution(ctx, opts.owner, core.Contribution{GoalID: id, Amount: m, Date: d})
				if err != nil {
					return nil, err
				}
				return map[string]any{"id": c.ID, "goal_id": c.GoalID, "amount": c.Amount, "date": c.Date}, nil
			})
		},
	}
	cmd.Flags().StringVar(&goalID, "goal", "", "Goal id")
	cmd.Flags().StringVar(&amount, "amount", "", "Contribution amount")
	cmd.Flags().StringVar(&date, "date", "", "Contribution date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("goal")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
