// Package migrations carries the versioned schema steps for the jobs table,
// embedded so the compiled binary manages its own schema without files on
// disk. The steps are templates over the target schema and table names;
// Render produces the concrete SQL for one (schema, table) pair as an fs.FS
// ready for golang-migrate's iofs source.
package migrations

import "embed"

//go:embed *.sql
var templates embed.FS

// Latest is the highest migration version in this package. Bump it when a
// new step is added.
const Latest = 3
