// Package testing provides test doubles and database helpers shared by the package tests
package testing

import (
	"fmt"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockDB bundles a gorm handle with the sqlmock controlling it
type MockDB struct {
	DB   *gorm.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB opens a gorm postgres handle on top of sqlmock.
// Expectations are matched as regular expressions against the generated SQL.
func NewMockDB() (*MockDB, error) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlmock: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm on sqlmock: %w", err)
	}

	return &MockDB{DB: db, Mock: mock}, nil
}
