// Package migration applies versioned SQL files to a SQLite database.
//
// Files are named {version}_{description}.sql, versions are contiguous
// integers, and every applied version is recorded in schema_migrations
// together with the checksum of the file that produced it.
package migration
