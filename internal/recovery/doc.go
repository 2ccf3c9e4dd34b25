// Package recovery detects and repairs pipeline work that stopped
// making progress: in-progress tasks that went silent or ran too long,
// pending tasks no worker ever claimed, and media files whose stage
// disagrees with their task history.
//
// The package is split along a read/write line. Detector performs the
// scans and never mutates state; Recoverer applies idempotent repairs,
// re-reading every record before writing so a concurrently revived task
// is never clobbered. HealthChecker runs both on a fixed cadence with
// at most one cycle in flight, each cycle inside a single transaction.
package recovery
