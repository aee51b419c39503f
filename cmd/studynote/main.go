package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/config"
	"github.com/xxxsen/studynote/internal/db"
	"github.com/xxxsen/studynote/internal/filestore"
	"github.com/xxxsen/studynote/internal/handler"
	"github.com/xxxsen/studynote/internal/job"
	"github.com/xxxsen/studynote/internal/middleware"
	"github.com/xxxsen/studynote/internal/pkg/jwt"
	"github.com/xxxsen/studynote/internal/pkg/password"
	"github.com/xxxsen/studynote/internal/repo"
	"github.com/xxxsen/studynote/internal/schedule"
	"github.com/xxxsen/studynote/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "studynote",
		Short: "studynote backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run studynote server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runServer(cfg, conn)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			logutil.GetLogger(context.Background()).Info("migrations applied")
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, *sqlx.DB, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded",
		zap.String("config", configPath),
		zap.String("env", cfg.Env),
	)

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(context.Background(), conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, conn, nil
}

func runServer(cfg *config.Config, conn *sqlx.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("file_store", cfg.FileStore.Type),
	)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	userRepo := repo.NewUserRepo(conn)
	noteRepo := repo.NewNoteRepo(conn)
	pendingRepo := repo.NewPendingDeletionRepo(conn)

	issuer := jwt.NewIssuer([]byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	uploads := service.NewUploadService(store)
	avatarPolicy := service.NewUploadPolicy(service.AvatarNamespace, cfg.Upload.Avatar)
	notePolicy := service.NewUploadPolicy(service.NoteNamespace, cfg.Upload.Note)

	authService := service.NewAuthService(userRepo, issuer, password.NewHasher(cfg.PasswordCost), uploads, service.AuthConfig{
		DefaultAvatar: cfg.DefaultAvatar,
		AvatarPolicy:  avatarPolicy,
		CacheSize:     cfg.UserCache.Size,
		CacheTTL:      time.Second * time.Duration(cfg.UserCache.TTLSeconds),
	})
	noteService := service.NewNoteService(noteRepo, pendingRepo, uploads, store, notePolicy)

	deps := handler.RouterDeps{
		Auth:          handler.NewAuthHandler(authService, avatarPolicy.MaxSize),
		Notes:         handler.NewNoteHandler(noteService, notePolicy.MaxSize),
		Tokens:        issuer,
		AuthRateLimit: time.Second * time.Duration(cfg.AuthRateLimitSeconds),
	}
	if store.Type() == "local" {
		deps.UploadDir = cfg.FileStore.Dir
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(handler.Middlewares(middleware.NewOriginPolicy(cfg.CORS.For(cfg.Env)))...),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewFileGCJob(pendingRepo, store), cfg.FileGC.Spec); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))
	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run()
	}()

	select {
	case <-ctx.Done():
		logutil.GetLogger(context.Background()).Info("server stopping...")
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	}
}
