package archive

import (
	"context"
	"fmt"
)

// Open creates the archive for driver. dsn is the database URL for postgres
// and the file path for sqlite.
func Open(ctx context.Context, driver, dsn string) (Archive, error) {
	switch driver {
	case DriverNone, "":
		return Nop{}, nil
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres archive requires a database URL")
		}
		return NewPostgres(ctx, dsn)
	case DriverSQLite:
		return NewSQLite(dsn)
	default:
		return nil, fmt.Errorf("unknown archive driver %q", driver)
	}
}
