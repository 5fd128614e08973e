package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/danmainah/resolveit-app/internal/db"
	"github.com/danmainah/resolveit-app/internal/logger"
	"github.com/danmainah/resolveit-app/internal/repository"
	"github.com/danmainah/resolveit-app/internal/service"
)

var (
	adminEmail    string
	adminName     string
	adminPassword string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Применить SQL миграции",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := openDB()
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.RunMigrations(rootCtx, conn, db.MigrationsFS(cfg.MigrationsPath)); err != nil {
			return err
		}
		logger.L().Info("миграции применены")
		return nil
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Создать учётную запись администратора",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := openDB()
		if err != nil {
			return err
		}
		defer conn.Close()

		tokens := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
		auth := service.NewAuthService(repository.NewUserRepository(conn), tokens)

		admin, err := auth.CreateAdmin(rootCtx, service.AdminInput{
			Name:     adminName,
			Email:    adminEmail,
			Password: adminPassword,
		})
		if err != nil {
			return err
		}

		logger.L().WithFields(logrus.Fields{
			"user_id": admin.ID,
			"email":   admin.Email,
		}).Info("администратор создан")
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "email администратора")
	createAdminCmd.Flags().StringVar(&adminName, "name", "", "имя администратора")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "пароль администратора")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("name")
	_ = createAdminCmd.MarkFlagRequired("password")
}

func openDB() (*sqlx.DB, error) {
	conn, err := db.NewPostgres(rootCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("подключение к базе: %w", err)
	}
	return conn, nil
}
