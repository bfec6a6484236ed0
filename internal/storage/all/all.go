// Package all registers every storage backend with the storage factory.
package all

import (
	_ "schoolcontacts/internal/storage/mssql"
	_ "schoolcontacts/internal/storage/postgres"
	_ "schoolcontacts/internal/storage/sqlite"
)
