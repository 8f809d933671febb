// Package all registers every built-in storage backend with the storage
// factory. Import it for side effects:
//
//	import _ "plantload/internal/storage/all"
//
// after which storage.New accepts the kinds "postgres", "mssql", "mysql" and
// "sqlite".
package all

import (
	_ "plantload/internal/storage/mssql"
	_ "plantload/internal/storage/mysql"
	_ "plantload/internal/storage/postgres"
	_ "plantload/internal/storage/sqlite"
)
