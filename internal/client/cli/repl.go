package cli

import (
	"bufio"
	"context"
	"strings"
)

// execIface defines the command surface the REPL dispatches to.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Register(ctx context.Context) error
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
	Whoami(ctx context.Context) error
	Status(ctx context.Context) error
	Profile(ctx context.Context, args []string) error
	Passwd(ctx context.Context) error
	Forgot(ctx context.Context) error
	Reset(ctx context.Context) error
	Verify(ctx context.Context, args []string) error
	Resend(ctx context.Context) error
	Audit(ctx context.Context, args []string) error
	Clear(ctx context.Context) error
}

const (
	helpSignedOut = "Available commands: login, register, forgot, reset, verify, resend, status, audit, clear, exit"
	helpSignedIn  = "Available commands: whoami, status, profile [name=.. email=.. phone=..], passwd, refresh, verify, resend, logout, audit [n], clear, exit"
)

// runREPL reads one command per line from reader and dispatches it to a.
// The prompt shows statusFn's output. The loop exits on EOF or when the
// user types "exit" or "quit".
//
// Command handlers report their own outcome; the errors they return are
// ignored here so one failed command never ends the session.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, printf func(string, ...any)) {
	for {
		printf("authkeeper %s> ", statusFn())
		line, err := readLine(reader)
		if err != nil {
			printf("\n")
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printf("%s\n", helpSignedIn)
			} else {
				printf("%s\n", helpSignedOut)
			}

		case "login":
			_ = a.Login(ctx)
		case "register":
			_ = a.Register(ctx)
		case "logout":
			_ = a.Logout(ctx)
		case "refresh":
			_ = a.Refresh(ctx)
		case "whoami":
			_ = a.Whoami(ctx)
		case "status":
			_ = a.Status(ctx)
		case "profile":
			_ = a.Profile(ctx, args)
		case "passwd":
			_ = a.Passwd(ctx)
		case "forgot":
			_ = a.Forgot(ctx)
		case "reset":
			_ = a.Reset(ctx)
		case "verify":
			_ = a.Verify(ctx, args)
		case "resend":
			_ = a.Resend(ctx)
		case "audit":
			_ = a.Audit(ctx, args)
		case "clear":
			_ = a.Clear(ctx)

		case "exit", "quit":
			printf("Bye!\n")
			return

		default:
			printf("Unknown command: %s\n", cmd)
		}
	}
}
