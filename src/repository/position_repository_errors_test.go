package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tradeassistant/src/repository"
)

func setupDBMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return db, mock
}

func TestFindBySymbolPropagatesQueryError(t *testing.T) {
	db, mock := setupDBMock(t)
	repo := repository.NewPositionRepository().WithDB(db)

	queryErr := errors.New("database is locked")
	mock.ExpectQuery(".*").WillReturnError(queryErr)

	position, err := repo.FindBySymbol(context.Background(), "AAPL")
	require.Error(t, err)
	require.ErrorIs(t, err, queryErr)
	require.Nil(t, position)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindBySymbolMissIsNotAnError(t *testing.T) {
	db, mock := setupDBMock(t)
	repo := repository.NewPositionRepository().WithDB(db)

	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"id", "symbol"}))

	position, err := repo.FindBySymbol(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Nil(t, position)
}
