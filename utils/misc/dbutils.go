package misc

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/stats"
	"github.com/rudderlabs/rudder-go-kit/stats/collectors"
)

// PostgresConnectionString returns the connection string of the database configured under keyPrefix, e.g.
// Registry.postgres. A configured dsn wins over the host, port, user, password, name and sslMode keys.
func PostgresConnectionString(c *config.Config, keyPrefix, componentName string) (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "bridge-exporter"
	}
	// application_name must stay under NAMEDATALEN (64) characters
	appName := lo.Substring(componentName, 0, 2) + "-" + lo.Substring(hostname, 0, 60)

	if dsn := c.GetString(keyPrefix+".dsn", ""); dsn != "" {
		return SetAppNameInDBConnURL(dsn, appName)
	}

	host := c.GetString(keyPrefix+".host", "localhost")
	port := c.GetInt(keyPrefix+".port", 5432)
	user := c.GetString(keyPrefix+".user", "bridge")
	password := c.GetString(keyPrefix+".password", "")
	dbname := c.GetString(keyPrefix+".name", "bridge")
	sslmode := c.GetString(keyPrefix+".sslMode", "disable")
	idleTxTimeout := c.GetDuration(keyPrefix+".idleTxTimeout", 5, time.Minute)

	return fmt.Sprintf("host=%s port=%d user=%s "+
		"password=%s dbname=%s sslmode=%s application_name=%s "+
		" options='-c idle_in_transaction_session_timeout=%d'",
		host, port, user, password, dbname, sslmode, appName,
		idleTxTimeout.Milliseconds(),
	), nil
}

// NewDatabaseConnectionPool opens and pings the postgres database configured under keyPrefix. Pool stats are
// reported under componentName.
func NewDatabaseConnectionPool(ctx context.Context, c *config.Config, keyPrefix, componentName string, stat stats.Stats) (*sql.DB, error) {
	connStr, err := PostgresConnectionString(c, keyPrefix, componentName)
	if err != nil {
		return nil, fmt.Errorf("building connection string: %w", err)
	}
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening connection to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if err := stat.RegisterCollector(collectors.NewDatabaseSQLStats(componentName, db)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("registering database stats collector: %w", err)
	}
	db.SetMaxOpenConns(c.GetInt(keyPrefix+".maxOpenConns", 4))
	db.SetMaxIdleConns(c.GetInt(keyPrefix+".maxIdleConns", 2))
	db.SetConnMaxIdleTime(c.GetDuration(keyPrefix+".connMaxIdleTime", 5, time.Minute))
	db.SetConnMaxLifetime(c.GetDuration(keyPrefix+".connMaxLifetime", 0, time.Second))
	return db, nil
}

// SetAppNameInDBConnURL sets application name in db connection url
// if application name is already present in dns it will get override by the appName
func SetAppNameInDBConnURL(connectionUrl, appName string) (string, error) {
	connUrl, err := url.Parse(connectionUrl)
	if err != nil {
		return "", err
	}
	queryParams := connUrl.Query()
	queryParams.Set("application_name", appName)
	connUrl.RawQuery = queryParams.Encode()
	return connUrl.String(), nil
}
