package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/danmainah/resolveit-app/internal/config"
	"github.com/danmainah/resolveit-app/internal/db"
	httpHandlers "github.com/danmainah/resolveit-app/internal/http/handlers"
	"github.com/danmainah/resolveit-app/internal/logger"
	"github.com/danmainah/resolveit-app/internal/repository"
	"github.com/danmainah/resolveit-app/internal/repository/memstore"
	"github.com/danmainah/resolveit-app/internal/service"
)

// stores репозитории выбранного хранилища.
type stores struct {
	users         service.UserRepository
	cases         service.CaseRepository
	panels        service.PanelRepository
	agreements    service.AgreementRepository
	notifications service.NotificationRepository
	pinger        httpHandlers.Pinger
	close         func()
}

// openStores подключает хранилище по STORE_DRIVER. Для postgres применяет миграции.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.L().Warn("main: используется хранилище в памяти, данные не сохраняются между запусками")
		mem := memstore.New()
		return &stores{
			users:         mem.Users(),
			cases:         mem.Cases(),
			panels:        mem.Panels(),
			agreements:    mem.Agreements(),
			notifications: mem.Notifications(),
			close:         func() {},
		}, nil
	}

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, dbConn, db.MigrationsFS(cfg.MigrationsPath)); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("миграции: %w", err)
	}

	return &stores{
		users:         repository.NewUserRepository(dbConn),
		cases:         repository.NewCaseRepository(dbConn),
		panels:        repository.NewPanelRepository(dbConn),
		agreements:    repository.NewAgreementRepository(dbConn),
		notifications: repository.NewNotificationRepository(dbConn),
		pinger:        dbConn,
		close:         func() { safeClose(dbConn) },
	}, nil
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		logger.L().WithError(err).Error("main: ошибка закрытия базы")
	}
}
