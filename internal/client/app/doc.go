// Package app wires the shiftdesk client together and runs it.
//
// NewApp builds every component from a config.Config: logger, session,
// transport, notification reconciler and realtime manager, all sharing one
// cookie jar and one event bus. Run connects the realtime channel, serves
// metrics when configured and, when stdin is a terminal, starts an
// interactive console:
//
//	status                  connection state, attempts and signed-in user
//	connect | disconnect    open or close the realtime channel
//	reconnect               restart the reconnect sequence
//	pending                 check for notifications queued while offline
//	view                    accept the last notification prompt
//	deliver                 force delivery of queued notifications
//	health                  probe the realtime gateway
//	get <path>              issue a GET and print the body
//	download <path> <file>  save a binary resource
//	cookie                  paste a session cookie header
//	exit | quit             leave
//
// Run returns on SIGINT, SIGTERM, SIGQUIT or when the console exits.
package app
