// Package postgres provides PostgreSQL implementations of the store
// interfaces. All implementations run over a store.DBTX, so they work
// unchanged against a connection pool or inside a transaction.
package postgres
