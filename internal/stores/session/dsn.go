package session

import (
	"fmt"
	"time"

	"github.com/ethanbaker/coach/pkg/utils"
	driver "github.com/go-sql-driver/mysql"
)

// DSNFromConfig builds a MySQL DSN from MYSQL_* settings. MYSQL_DSN, when set, is used as is.
func DSNFromConfig(cfg *utils.Config) (string, error) {
	if dsn := cfg.Get("MYSQL_DSN"); dsn != "" {
		if _, err := driver.ParseDSN(dsn); err != nil {
			return "", fmt.Errorf("invalid MYSQL_DSN: %w", err)
		}
		return dsn, nil
	}

	database := cfg.Get("MYSQL_DATABASE")
	if database == "" {
		return "", fmt.Errorf("MYSQL_DATABASE not set in environment")
	}

	c := driver.NewConfig()
	c.User = cfg.GetWithDefault("MYSQL_USERNAME", "root")
	c.Passwd = cfg.Get("MYSQL_ROOT_PASSWORD")
	c.Net = "tcp"
	c.Addr = cfg.GetWithDefault("MYSQL_HOST", "127.0.0.1") + ":" + cfg.GetWithDefault("MYSQL_PORT", "3306")
	c.DBName = database
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}

	return c.FormatDSN(), nil
}
