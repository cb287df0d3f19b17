// Package logging configures log/slog for logfind and prefind.
//
// Without --debug only warnings and errors reach stderr as text. With --debug
// every event is written as JSON to $XDG_STATE_HOME/<app>/<app>.log, rotated
// by size,
// and can be read back with the logs subcommand.
package logging
