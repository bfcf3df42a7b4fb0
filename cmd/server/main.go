package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"user-accounts/internal/backup"
	"user-accounts/internal/config"
	apphttp "user-accounts/internal/http"
	"user-accounts/internal/repository/sqlite"
	"user-accounts/internal/service"
	"user-accounts/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	v          *viper.Viper
	configFile string
	cfg        config.Config
	logger     *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "user-accounts",
		Short:         "User account backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "path to a config file")
	root.Flags().String("addr", "", "listen address (overrides server.addr)")
	_ = a.v.BindPFlag("server.addr", root.Flags().Lookup("addr"))

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := a.openDB(cmd.Context())
				if err != nil {
					return err
				}
				return db.Close()
			},
		},
		a.backupCmd(),
	)
	return root
}

func (a *app) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage database snapshots in object storage",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Upload a database snapshot",
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := a.openDB(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()

				runner, err := a.backupRunner(cmd.Context(), db)
				if err != nil {
					return err
				}
				location, err := runner.Run(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), location)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List uploaded database snapshots",
			RunE: func(cmd *cobra.Command, _ []string) error {
				runner, err := a.backupRunner(cmd.Context(), nil)
				if err != nil {
					return err
				}
				snapshots, err := runner.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range snapshots {
					modified := "-"
					if s.LastModified != nil {
						modified = s.LastModified.Format(time.RFC3339)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", s.Key, s.Size, modified)
				}
				return nil
			},
		},
	)
	return cmd
}

func (a *app) setup() error {
	a.logger = logrus.New()
	a.logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		a.logger.Errorf("load config: %v", err)
		return err
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		a.logger.Errorf("parse log level: %v", err)
		return err
	}
	a.logger.SetLevel(level)
	a.cfg = cfg
	return nil
}

func (a *app) openDB(ctx context.Context) (*sql.DB, error) {
	db, err := sqlite.Open(a.cfg.Database.Path)
	if err != nil {
		a.logger.Errorf("open database: %v", err)
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, a.logger); err != nil {
		_ = db.Close()
		a.logger.Errorf("migrate database: %v", err)
		return nil, err
	}
	return db, nil
}

func (a *app) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	userService := service.NewUserService(sqlite.NewUserRepository(db), a.logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	apphttp.NewHandler(userService, a.logger).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    a.cfg.Server.Addr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Infof("listening on %s", a.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			a.logger.Errorf("http server: %v", err)
			return err
		}
	}
	a.logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warnf("http shutdown: %v", err)
	}

	if a.cfg.Backup.OnShutdown && a.cfg.BackupEnabled() {
		backupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		runner, err := a.backupRunner(backupCtx, db)
		if err == nil {
			_, err = runner.Run(backupCtx)
		}
		if err != nil {
			a.logger.Warnf("shutdown snapshot: %v", err)
		}
	}

	a.logger.Info("bye")
	return nil
}

func (a *app) backupRunner(ctx context.Context, db *sql.DB) (*backup.Runner, error) {
	storageSvc, err := buildStorage(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("setup storage: %w", err)
	}
	return backup.NewRunner(db, storageSvc, backup.Config{
		UploadOptions: storage.UploadOptions{
			Bucket:    a.cfg.Backup.Bucket,
			KeyPrefix: a.cfg.Backup.KeyPrefix,
		},
		Logger: a.logger,
	}), nil
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if !cfg.BackupEnabled() {
		return nil, fmt.Errorf("backup bucket is required")
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Backup.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Backup.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Backup.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Backup.Bucket, cfg.Backup.Region)
	return storage.NewS3Service(client), nil
}
