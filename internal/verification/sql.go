package verification

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/stepflow/orchestrator/internal/apierr"
)

// SQLConnector verifies against a relational store by running the
// resolved query (a single SELECT) verbatim via `sqlx.QueryxContext`,
// returning `{ rows: [{col: val,...},...], rowCount }`. Config must
// carry `dsn`.
type SQLConnector struct {
	connType string
	openDB   func(dsn string) (*sqlx.DB, error)
}

// NewPostgresConnector builds a SQLConnector that opens Postgres
// connections via lib/pq, dialing a fresh pool per call.
func NewPostgresConnector() *SQLConnector {
	return &SQLConnector{
		connType: "postgres",
		openDB: func(dsn string) (*sqlx.DB, error) {
			return sqlx.Open("postgres", dsn)
		},
	}
}

func (c *SQLConnector) Type() string { return c.connType }

func (c *SQLConnector) Execute(ctx context.Context, config map[string]string, resolvedQuery string, queryTimeout time.Duration) (string, error) {
	query := strings.TrimSpace(resolvedQuery)
	if query == "" {
		return "", apierr.Validation("sql verification requires a query")
	}

	db, err := c.openDB(config["dsn"])
	if err != nil {
		return "", apierr.VerificationQuery(c.connType, err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.QueryxContext(ctx, query)
	if err != nil {
		return "", apierr.VerificationQuery(c.connType, err)
	}
	defer rows.Close()

	var results []map[string]interface{}
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return "", apierr.VerificationQuery(c.connType, err)
		}
		results = append(results, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return "", apierr.VerificationQuery(c.connType, err)
	}

	b, err := json.Marshal(map[string]interface{}{"rows": results, "rowCount": len(results)})
	if err != nil {
		return "", apierr.Internal("failed to encode sql result", err)
	}
	return string(b), nil
}

func (c *SQLConnector) Listen(ctx context.Context, config map[string]string, resolvedQuery string) (Listener, error) {
	return &pollListener{connector: c, config: config, query: resolvedQuery}, nil
}

// normalizeRow converts []byte column values (as sqlx/lib-pq returns
// for many types) to strings so the result marshals predictably.
func normalizeRow(row map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		switch val := v.(type) {
		case []byte:
			out[k] = string(val)
		case sql.NullString:
			if val.Valid {
				out[k] = val.String
			} else {
				out[k] = nil
			}
		default:
			out[k] = v
		}
	}
	return out
}
