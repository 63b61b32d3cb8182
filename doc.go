// Package dunesync synchronizes tabular data between Dune Analytics and
// PostgreSQL, in both directions.
//
// A sync is described as a set of named jobs in a YAML file. Each job pairs
// one source with one destination:
//
//   - A Dune source executes a saved query (optionally parameterized), polls
//     until the execution terminates, and materializes the result into a
//     typed frame.
//   - A PostgreSQL source runs an arbitrary SQL query, inline or loaded from
//     a .sql file.
//   - A PostgreSQL destination writes the frame under one of four conflict
//     policies: append, replace, upsert or insert_ignore. Tables are created
//     on first write from the frame's column types.
//   - A Dune destination re-creates a namespaced table from the frame's
//     column types and uploads the rows as CSV.
//
// Types cross the boundary through a single mapping: Dune result types
// (bigint, varbinary, decimal(p,s), uint256, ...) resolve to semantic column
// kinds that render as PostgreSQL DDL on one side and as Dune table-schema
// types on the other. Binary values travel as "0x"-prefixed hex strings;
// unknown types degrade to JSONB rather than failing the sync.
//
// The dunesync command in cmd/dunesync loads the config, validates every
// job's source and destination, and runs the selected jobs concurrently.
package dunesync
