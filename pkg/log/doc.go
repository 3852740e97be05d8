/*
Package log provides structured logging for felt using zerolog.

A single global Logger is configured once by Init from the serve command.
Components derive child loggers at construction time and keep them:

	logger := log.WithComponent("registry")
	slog := log.WithSession(code)
	plog := log.WithParticipant(slog, participantID)
	clog := log.WithConn(connID)

Console output is the default for interactive use; JSON output is meant for
log shippers. Level filtering is global (zerolog.SetGlobalLevel).

Conventions used across the server:

  - Rejected operations log at debug. They are normal traffic.
  - Session lifecycle (create, join, leave, retire) logs at info.
  - Recovered panics and storage failures log at error.
*/
package log
