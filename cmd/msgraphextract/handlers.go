package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"golang.org/x/term"

	"msgraphextract/internal/common/logger"
	"msgraphextract/internal/common/ratelimit"
	"msgraphextract/internal/common/security"
	"msgraphextract/internal/common/version"
	"msgraphextract/internal/extract"
	"msgraphextract/internal/graph"
)

const (
	toolName    = "msgraphextract"
	auditAction = "extract"
)

// Streams carries the standard streams of one invocation.
type Streams struct {
	In  io.Reader
	Out io.Writer
	// InIsTerminal is true when In is an interactive terminal.
	InIsTerminal bool
}

// osStreams returns the process streams.
func osStreams() Streams {
	return Streams{
		In:           os.Stdin,
		Out:          os.Stdout,
		InIsTerminal: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// execute validates config, loads the message IDs, wires the Graph client
// and runs the extraction.
func execute(ctx context.Context, config *Config, streams Streams) error {
	out := streams.Out

	if config.ShowVersion {
		fmt.Fprintf(out, "Microsoft Graph Message Extraction Tool - Version %s\n", version.Get())
		return nil
	}

	if err := validateConfiguration(config); err != nil {
		return fmt.Errorf("%w: %w", errInvalidConfig, err)
	}

	slogger := logger.SetupLogger(config.VerboseMode, config.LogLevel)
	logger.LogInfo(slogger, "Application starting",
		"version", version.Get(),
		"identity", security.MaskIdentity(config.Identity),
		"output", config.OutputDir)

	if config.MessageID == "" && config.IDsFile == "" && streams.InIsTerminal {
		logger.Info(out, "Enter one Message ID per line, then press Ctrl+D (Ctrl+Z, Enter on Windows) to finish.")
	}
	ids, err := extract.LoadIdentifiers(config.MessageID, config.IDsFile, streams.In, out)
	if err != nil {
		return err
	}

	runner, cleanup, err := setupRunner(ctx, config, out, slogger)
	if err != nil {
		return err
	}
	defer cleanup()

	start := time.Now()
	summary, err := runner.Run(ctx, config.Identity, config.OutputDir, ids)
	if err != nil {
		logger.LogError(slogger, "Extraction aborted", "error", err, "processed", summary.Processed)
		return err
	}

	logger.LogInfo(slogger, "Extraction finished",
		"processed", summary.Processed,
		"found", summary.Found,
		"notFound", summary.NotFound,
		"duration", time.Since(start).Round(time.Millisecond))
	logger.Success(out, "Script execution complete.")
	return nil
}

// setupRunner builds the HTTP client, token source, Graph client and
// exporters for config. In verbose mode it authenticates up front to print
// the token details. The returned cleanup closes the audit log.
func setupRunner(ctx context.Context, config *Config, out io.Writer, slogger *slog.Logger) (*extract.Runner, func(), error) {
	httpClient, err := graph.NewHTTPClient(config.ProxyURL)
	if err != nil {
		return nil, nil, err
	}
	if config.ProxyURL != "" {
		logger.Info(out, "Using proxy: %s", redactURL(config.ProxyURL))
	}

	scope, err := graph.DefaultScope(config.GraphURL)
	if err != nil {
		return nil, nil, err
	}
	source, err := graph.NewTokenSource(config.credentials(), config.Authority, scope, httpClient, slogger)
	if err != nil {
		return nil, nil, err
	}
	auth := graph.NewAuthenticator(source, out, slogger)
	if config.VerboseMode {
		if err := printTokenDiagnostics(ctx, auth, out); err != nil {
			return nil, nil, err
		}
	}

	limiter := ratelimit.New(config.RateLimit)
	logger.LogDebug(slogger, "Rate limiter configured", "limit", limiter.String())

	client, err := graph.NewClient(config.GraphURL, auth,
		graph.WithHTTPClient(httpClient),
		graph.WithRateLimiter(limiter),
		graph.WithLogger(slogger))
	if err != nil {
		return nil, nil, err
	}

	audit := openAuditLog(config, out, slogger)
	cleanup := func() {
		if audit != nil {
			audit.Close()
		}
	}

	runner := &extract.Runner{
		Auth:          auth,
		Resolver:      extract.NewResolver(client, nil, out, slogger),
		Exporter:      extract.NewContentExporter(client, out, slogger),
		ExportContent: !config.MetadataOnly,
		Audit:         audit,
		Out:           out,
		Logger:        slogger,
	}
	return runner, cleanup, nil
}

// openAuditLog opens the per-day audit log. Failure only warns; the run
// continues without one.
func openAuditLog(config *Config, out io.Writer, slogger *slog.Logger) logger.Logger {
	if !config.AuditLog {
		return nil
	}
	format, err := logger.ParseLogFormat(config.LogFormat)
	if err != nil {
		logger.Warning(out, "Could not initialize audit logging: %v", err)
		return nil
	}
	audit, err := logger.Open(format, "", toolName, auditAction, extract.AuditColumns)
	if err != nil {
		logger.Warning(out, "Could not initialize audit logging: %v", err)
		return nil
	}
	logger.LogDebug(slogger, "Audit log opened", "path", audit.Path(), "format", format)
	return audit
}

// printTokenDiagnostics authenticates early and prints the token claims,
// warning when no mail read role is present.
func printTokenDiagnostics(ctx context.Context, auth *graph.Authenticator, out io.Writer) error {
	tok, err := auth.Token(ctx)
	if err != nil {
		return err
	}
	graph.PrintTokenInfo(out, tok, time.Now())

	claims, err := graph.ParseTokenClaims(tok.AccessToken)
	if err == nil && !claims.CanReadMail() {
		logger.Warning(out, "Access token carries no Mail.Read application role, folder searches will likely fail with 403.")
	}
	return nil
}

// redactURL hides the password of a proxy URL.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
