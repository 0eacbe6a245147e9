// Package logger provides structured logging for the Jira harvester.
//
// It wraps zerolog behind a small Logger interface so components can be
// handed an injected logger (and tests a capturing TestLogger) without
// depending on the logging backend. A process-wide logger is available via
// Initialize/GetLogger for code paths that have no injection point.
package logger
