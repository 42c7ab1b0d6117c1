package verification

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLConnectorExecuteReturnsRowsAsJSON(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT status FROM orders WHERE id = 1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("shipped"))

	connector := &SQLConnector{
		connType: "postgres",
		openDB: func(dsn string) (*sqlx.DB, error) {
			return sqlx.NewDb(db, "postgres"), nil
		},
	}

	result, err := connector.Execute(context.Background(), map[string]string{"dsn": "unused"}, "SELECT status FROM orders WHERE id = 1", time.Second)
	require.NoError(t, err)
	assert.Contains(t, result, "shipped")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConnectorRequiresQueryDirective(t *testing.T) {
	connector := &SQLConnector{connType: "postgres", openDB: func(dsn string) (*sqlx.DB, error) { panic("should not be called") }}

	_, err := connector.Execute(context.Background(), map[string]string{}, "", time.Second)
	assert.Error(t, err)
}
