// Package all registers every built-in storage backend. Import it for its
// side effects from the binary's wiring layer:
//
//	import _ "github.com/Cemag-pcp/projeto-epi-sub000/internal/storage/all"
package all

import (
	_ "github.com/Cemag-pcp/projeto-epi-sub000/internal/storage/mssql"
	_ "github.com/Cemag-pcp/projeto-epi-sub000/internal/storage/mysql"
	_ "github.com/Cemag-pcp/projeto-epi-sub000/internal/storage/postgres"
	_ "github.com/Cemag-pcp/projeto-epi-sub000/internal/storage/sqlite"
)
