package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/app"
	"github.com/mbolis/survey-builder/config"
	"github.com/mbolis/survey-builder/database"
	"github.com/mbolis/survey-builder/events"
	"github.com/mbolis/survey-builder/httpx"
	"github.com/mbolis/survey-builder/log"
	"github.com/mbolis/survey-builder/model"
	"github.com/mbolis/survey-builder/routes"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "survey-builder",
	Short: "Survey builder server and maintenance commands",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cfg.Resolve()
	},
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE:  runServe,
}

var createUserCmd = &cobra.Command{
	Use:   "create-user <username> <password>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(2),
	RunE:  runCreateUser,
}

var duplicateFormCmd = &cobra.Command{
	Use:   "duplicate-form <form-id>",
	Short: "Copy a form into a new draft",
	Args:  cobra.ExactArgs(1),
	RunE:  runDuplicateForm,
}

var fixOrderingCmd = &cobra.Command{
	Use:   "fix-ordering [form-id]",
	Short: "Renumber question positions 1..n, for one form or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFixOrdering,
}

var regenerateQRCmd = &cobra.Command{
	Use:   "regenerate-qr [form-id]",
	Short: "Render the QR code of a published form again",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRegenerateQR,
}

var (
	userEmail string
	userRole  string

	duplicateOwner string
	duplicateTitle string

	dryRun  bool
	allQRCs bool
)

func init() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "main.dotenv:", err)
	}
	cfg = config.Register(rootCmd.PersistentFlags())

	createUserCmd.Flags().StringVar(&userEmail, "email", "", "account e-mail")
	createUserCmd.Flags().StringVar(&userRole, "role", string(model.RoleFormCreator), "account role: administrator, form_creator, editor or respondent")

	duplicateFormCmd.Flags().StringVar(&duplicateOwner, "owner", "", "username of the new owner")
	duplicateFormCmd.Flags().StringVar(&duplicateTitle, "title", "", "title of the copy")
	_ = duplicateFormCmd.MarkFlagRequired("owner")

	fixOrderingCmd.Flags().BoolVar(&dryRun, "dry-run", false, "only report what would be renumbered")

	regenerateQRCmd.Flags().BoolVar(&allQRCs, "all", false, "regenerate every published form")

	rootCmd.AddCommand(serveCmd, createUserCmd, duplicateFormCmd, fixOrderingCmd, regenerateQRCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal("main:", err)
	}
}

func setup() (*sqlx.DB, func(), error) {
	logFile := log.Setup(log.Options{Debug: cfg.Debug, File: cfg.LogFile, MaxSize: cfg.LogMaxSize})

	db, err := database.Open(*cfg)
	if err != nil {
		logFile.Close()
		return nil, nil, fmt.Errorf("db.open: %w", err)
	}
	return db, func() {
		db.Close()
		logFile.Close()
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	db, closeAll, err := setup()
	if err != nil {
		return err
	}
	defer closeAll()

	app := app.New(db, *cfg, app.Options{})
	defer app.Events.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = runServer(ctx, *cfg, routes.Wire(app))
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runServer(ctx context.Context, cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     handler,
		IdleTimeout: time.Minute,
		ReadTimeout: 30 * time.Second,
		// exports stream for as long as the result set takes
		WriteTimeout: 10 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("main.shutdown:", err)
		}
	}()

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	db, closeAll, err := setup()
	if err != nil {
		return err
	}
	defer closeAll()

	account, err := httpx.CreateAccount(cmd.Context(), db, args[0], userEmail, args[1], model.Role(userRole))
	if err != nil {
		return fmt.Errorf("create-user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (#%d, %s)\n", account.Username, account.ID, account.Role)
	return nil
}

func runDuplicateForm(cmd *cobra.Command, args []string) error {
	formID, err := parseID(args[0])
	if err != nil {
		return err
	}
	db, closeAll, err := setup()
	if err != nil {
		return err
	}
	defer closeAll()

	owner, err := httpx.LookupActor(cmd.Context(), db, duplicateOwner)
	if err != nil {
		return fmt.Errorf("duplicate-form: owner %q: %w", duplicateOwner, err)
	}
	app := app.New(db, *cfg, app.Options{Events: events.Nop{}})
	form, err := app.Forms.Duplicate(cmd.Context(), formID, owner, duplicateTitle)
	if err != nil {
		return fmt.Errorf("duplicate-form: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created form #%d %q (%s)\n", form.ID, form.Title, form.Slug)
	return nil
}

func runFixOrdering(cmd *cobra.Command, args []string) error {
	var formID int64
	if len(args) == 1 {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		formID = id
	}
	db, closeAll, err := setup()
	if err != nil {
		return err
	}
	defer closeAll()

	app := app.New(db, *cfg, app.Options{Events: events.Nop{}})
	changes, err := app.Forms.FixOrdering(cmd.Context(), formID, dryRun)
	if err != nil {
		return fmt.Errorf("fix-ordering: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, c := range changes {
		fmt.Fprintf(out, "form #%d question #%d: %d -> %d\n", c.FormID, c.QuestionID, c.From, c.To)
	}
	switch {
	case len(changes) == 0:
		fmt.Fprintln(out, "ordering is already consistent")
	case dryRun:
		fmt.Fprintf(out, "%d questions would be renumbered\n", len(changes))
	default:
		fmt.Fprintf(out, "%d questions renumbered\n", len(changes))
	}
	return nil
}

func runRegenerateQR(cmd *cobra.Command, args []string) error {
	if allQRCs == (len(args) == 1) {
		return errors.New("regenerate-qr: give either a form id or --all")
	}
	db, closeAll, err := setup()
	if err != nil {
		return err
	}
	defer closeAll()

	app := app.New(db, *cfg, app.Options{Events: events.Nop{}})
	ctx := cmd.Context()

	var ids []int64
	if allQRCs {
		all, err := app.Forms.List(ctx, model.Actor{Role: model.RoleAdministrator})
		if err != nil {
			return fmt.Errorf("regenerate-qr: %w", err)
		}
		for _, f := range all {
			if f.Published() {
				ids = append(ids, f.ID)
			}
		}
	} else {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ids = []int64{id}
	}

	for _, id := range ids {
		if err := app.Forms.RegenerateQR(ctx, id); err != nil {
			return fmt.Errorf("regenerate-qr: form #%d: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "form #%d: QR code regenerated\n", id)
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid form id %q", s)
	}
	return id, nil
}
