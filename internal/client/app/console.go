package app

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/shiftdesk/internal/client/transport"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// commands is the surface the console drives. *App satisfies it; tests
// provide a stub.
type commands interface {
	Status(ctx context.Context) string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Pending(ctx context.Context) error
	View(ctx context.Context) error
	Deliver(ctx context.Context) error
	Health(ctx context.Context) error
	Get(ctx context.Context, path string) error
	Download(ctx context.Context, path, file string) error
	Cookie(ctx context.Context) error
}

// runConsole reads one command per line and dispatches it to a until EOF,
// "exit" or "quit". Command errors are printed and the loop goes on.
func runConsole(ctx context.Context, a commands, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("shiftdesk %s> ", a.Status(ctx)))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn("Available commands: status, connect, disconnect, reconnect, pending, view, deliver, health, get, download, cookie, exit")
		case "status":
			printlnFn(a.Status(ctx))
		case "connect":
			err = a.Connect(ctx)
		case "disconnect":
			err = a.Disconnect(ctx)
		case "reconnect":
			err = a.Reconnect(ctx)
		case "pending":
			err = a.Pending(ctx)
		case "view":
			err = a.View(ctx)
		case "deliver":
			err = a.Deliver(ctx)
		case "health":
			err = a.Health(ctx)
		case "get":
			if len(args) != 1 {
				printlnFn("Usage: get <path>")
				continue
			}
			err = a.Get(ctx, args[0])
		case "download":
			if len(args) != 2 {
				printlnFn("Usage: download <path> <file>")
				continue
			}
			err = a.Download(ctx, args[0], args[1])
		case "cookie":
			err = a.Cookie(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printError(err)
		}
	}
}

// printError shows API failures with their code and status.
func printError(err error) {
	apiErr, ok := transport.AsAPIError(err)
	if !ok {
		printlnFn("Error:", err)
		return
	}
	if apiErr.StatusCode > 0 {
		printlnFn(fmt.Sprintf("Error [%s %d]: %s", apiErr.Code, apiErr.StatusCode, apiErr.Message))
		return
	}
	printlnFn(fmt.Sprintf("Error [%s]: %s", apiErr.Code, apiErr.Message))
}
