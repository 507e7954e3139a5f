package app

import (
	"fmt"

	"github.com/partnerdesk/partnerdesk/internal/cleanup"
	"github.com/partnerdesk/partnerdesk/internal/config"
	"github.com/partnerdesk/partnerdesk/internal/db"
	"github.com/partnerdesk/partnerdesk/internal/repository"
	"github.com/partnerdesk/partnerdesk/internal/service"
	"github.com/partnerdesk/partnerdesk/internal/storage"
	"github.com/partnerdesk/partnerdesk/internal/store"
)

type App struct {
	Cfg           *config.Config
	Handle        *db.Handle
	Storage       storage.Storage
	Cleanup       *cleanup.Worker
	AuthService   *service.AuthService
	RecordService *service.RecordService
}

func New(cfg *config.Config) (*App, error) {
	// The database connects in the background; requests fail fast as 503
	// until it is ready.
	handle := db.Connect(cfg.DBDriver, cfg.DBConnection, cfg.DBConnectRetry)

	fileStorage, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}
	cleanupWorker := cleanup.NewWorker(fileStorage, service.PublicPrefix, cfg.CleanupQueueSize)

	// Repositories
	accountRepository := repository.NewAccountRepository(handle)

	// Services
	credentialService := service.NewCredentialService()
	authService := service.NewAuthService(accountRepository, credentialService, cfg.SessionTTLAdmin, cfg.SessionTTLDefault)
	recordStore := store.New(handle, cfg.DBDriver)
	attachmentService := service.NewAttachmentService(fileStorage)
	recordService := service.NewRecordService(recordStore, attachmentService, cleanupWorker, credentialService)

	return &App{
		Cfg:           cfg,
		Handle:        handle,
		Storage:       fileStorage,
		Cleanup:       cleanupWorker,
		AuthService:   authService,
		RecordService: recordService,
	}, nil
}

// Close drains the cleanup queue before the database goes away, so every
// already-scheduled file deletion still runs.
func (a *App) Close() error {
	a.Cleanup.Close()
	return a.Handle.Close()
}
