// Package api holds the service's thin HTTP surface: the liveness
// probe and the manual health-check trigger used by external cron.
package api
