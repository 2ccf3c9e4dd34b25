// Package store defines the persistence contracts for the pipeline:
// store interfaces, shared error values, and the transaction helper
// every recovery cycle runs inside.
package store
