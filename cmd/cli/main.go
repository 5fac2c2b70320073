package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/audit"
	"github.com/dmitrijs2005/authkeeper/internal/client/auth"
	"github.com/dmitrijs2005/authkeeper/internal/client/cli"
	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/config"
	"github.com/dmitrijs2005/authkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/authkeeper/internal/client/secretstore"
	"github.com/dmitrijs2005/authkeeper/internal/client/services"
	"github.com/dmitrijs2005/authkeeper/internal/client/session"
	"github.com/dmitrijs2005/authkeeper/internal/client/tokenstore"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/filex"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/netx"
	"golang.org/x/term"
)

// buildVersion is set with -ldflags "-X main.buildVersion=...".
var buildVersion = "N/A"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	dbPath, err := filex.EnsureParentDir(cfg.DatabasePath)
	if err != nil {
		return err
	}
	db, err := client.InitDatabase(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	defer db.Close()

	passphrase, err := readPassphrase(cfg.Passphrase)
	if err != nil {
		return err
	}
	secrets, err := secretstore.NewSealed(ctx, metadata.NewSQLiteRepository(db), passphrase)
	common.WipeByteArray(passphrase)
	if err != nil {
		return fmt.Errorf("open secret store: %w", err)
	}

	auditLog := audit.NewSQLiteSink(db)
	sinks := audit.MultiSink{auditLog, audit.NewLoggerSink(logger)}
	if cfg.AuditDSN != "" {
		pg, closePG, err := audit.OpenPostgresSink(ctx, cfg.AuditDSN)
		if err != nil {
			return fmt.Errorf("open audit database: %w", err)
		}
		defer closePG()
		sinks = append(sinks, pg)
	}
	recorder := audit.NewRecorder(sinks,
		audit.WithLogger(logger),
		audit.WithRequestInfo(audit.RequestInfo{
			IPAddress: netx.OutboundIPOrEmpty(netx.DefaultRouteAddr),
			UserAgent: audit.DefaultUserAgent(buildVersion),
			Location:  cfg.Location,
		}),
	)

	api, err := client.NewAuthServiceClient(cfg.ServerEndpointAddr,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithTokenSource(tokenstore.Access(secrets).Get),
	)
	if err != nil {
		return err
	}

	gateway := services.NewAuthService(api, secrets,
		services.WithLogger(logger),
		services.WithRecorder(recorder),
		services.WithLoginLimit(cfg.LoginRateLimit, cfg.LoginBurst),
		services.WithDefaultSessionTTL(cfg.DefaultSessionTTL),
	)
	defer gateway.Close()

	manager := session.NewManager(gateway,
		session.WithLogger(logger),
		session.WithExpiryInterval(cfg.ExpirySweepInterval),
		session.WithRefreshInterval(cfg.RefreshSweepInterval),
		session.WithRefreshWindow(cfg.RefreshWindow),
	)
	machine := auth.NewMachine(manager, auth.WithLogger(logger))
	defer machine.Close()

	if err := machine.Initialize(ctx); err != nil {
		logger.Warn(ctx, "could not restore the previous session", "error", err)
	}

	fmt.Printf("authkeeper %s\n", buildVersion)
	cli.NewApp(machine, os.Stdin, os.Stdout, cli.WithAuditLog(auditLog)).Run(ctx)
	return nil
}

// readPassphrase returns the configured passphrase or asks for it on the
// terminal.
func readPassphrase(configured string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("no passphrase: pass -k or set " + config.PassphraseEnvVar)
	}
	fmt.Fprint(os.Stdout, "Secret store passphrase: ")
	p, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stdout)
	if err != nil {
		return nil, err
	}
	return p, nil
}
