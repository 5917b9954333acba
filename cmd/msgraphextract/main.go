// Package main provides msgraphextract, a command-line tool that finds
// Exchange Online messages by Internet Message-ID through Microsoft Graph
// and exports them for review.
//
// For every message found it creates "<output>/<subject> - <uuid>/" holding
// the HTML body ("Email Content.html") and each attachment
// ("Attachment - <name>"). A consolidated "Email Metadata.csv" with one row
// per message is written to the output directory.
//
// Authentication methods supported:
//   - Client Secret: standard App Registration secret
//   - PFX Certificate: certificate file with private key
//
// The application needs the Mail.Read application permission.
//
// Example usage:
//
//	msgraphextract --tenant-id contoso.onmicrosoft.com --app-id ... --app-secret ... \
//	    --identity legal@contoso.com --output ./export --ids-file ids.txt
//
// Version information is embedded from the VERSION file at compile time using go:embed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"msgraphextract/internal/common/logger"
	"msgraphextract/internal/extract"
	"msgraphextract/internal/graph"
)

func main() {
	ctx, cancel := setupSignalHandling()

	streams := osStreams()
	err := newRootCommand(NewConfig(), streams).ExecuteContext(ctx)
	cancel()

	if err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCommand returns the msgraphextract command bound to config.
func newRootCommand(config *Config, streams Streams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "msgraphextract",
		Short: "Export Exchange Online messages by Internet Message-ID",
		Long: `Searches a mailbox through Microsoft Graph for each Internet Message-ID,
in Inbox, Sent Items, Deleted Items, Junk Email, Archive, Drafts,
Recoverable Items and finally the whole mailbox, and exports the bodies,
attachments and a metadata table of the messages found.

Message IDs are taken from --message-id, from --ids-file (one per line) or
from standard input.`,
		Example: `  msgraphextract --tenant-id contoso.onmicrosoft.com --app-id <guid> --app-secret <secret> -u legal@contoso.com -o ./export --ids-file ids.txt
  cat ids.txt | msgraphextract --tenant-id <guid> --app-id <guid> --pfx app.pfx --pfx-pass <pass> -u legal@contoso.com -o ./export
  msgraphextract ... --message-id "<CAF=abc@mail.example.com>" --metadata-only`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), config, streams)
		},
	}
	cmd.SetOut(streams.Out)
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errInvalidConfig, err)
	})
	registerFlags(cmd, config)
	return cmd
}

// reportError prints the single status line for a fatal error. An
// authentication failure has already been reported by the authenticator.
func reportError(w io.Writer, err error) {
	var authErr *graph.AuthenticationError
	var inputErr *extract.InputError
	switch {
	case errors.As(err, &authErr):
	case errors.Is(err, errInvalidConfig):
		logger.Error(w, "%v", err)
		fmt.Fprintln(w, "Run 'msgraphextract --help' for usage.")
	case errors.As(err, &inputErr):
		logger.Error(w, "%v", err)
	case errors.Is(err, context.Canceled):
		logger.Warning(w, "Run interrupted.")
	default:
		logger.Error(w, "A critical error occurred: %v", err)
	}
}

// setupSignalHandling configures graceful shutdown on interrupt signals.
// Returns a cancellable context for use throughout the application.
func setupSignalHandling() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			fmt.Println("\n\nReceived interrupt signal. Shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
