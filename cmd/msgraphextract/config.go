package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"msgraphextract/internal/common/logger"
	"msgraphextract/internal/common/validation"
	"msgraphextract/internal/graph"
)

// errInvalidConfig marks errors caused by flags or their values.
var errInvalidConfig = errors.New("configuration error")

// Config holds all msgraphextract configuration.
type Config struct {
	ShowVersion bool

	// Authentication
	TenantID     string
	ClientID     string
	ClientSecret string
	PfxPath      string
	PfxPassword  string

	// Target mailbox and output
	Identity     string
	OutputDir    string
	MetadataOnly bool

	// Identifier input; stdin when both are empty
	MessageID string
	IDsFile   string

	// Network configuration
	ProxyURL  string
	RateLimit float64 // Maximum Graph requests per second (0 = unlimited)
	Authority string
	GraphURL  string

	// Runtime configuration
	VerboseMode bool
	LogLevel    string
	LogFormat   string // Audit log file format: csv, json
	AuditLog    bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Authority: graph.DefaultAuthority,
		GraphURL:  graph.DefaultGraphURL,
		LogLevel:  "INFO",
		LogFormat: "csv",
		AuditLog:  true,
	}
}

// flagAliases maps accepted alternative spellings to canonical flag names.
var flagAliases = map[string]string{
	"application-id":     "app-id",
	"application-secret": "app-secret",
	"id-file":            "ids-file",
}

func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	if canonical, ok := flagAliases[name]; ok {
		name = canonical
	}
	return pflag.NormalizedName(name)
}

// registerFlags binds every flag of cmd to config.
func registerFlags(cmd *cobra.Command, config *Config) {
	flags := cmd.Flags()
	flags.SetNormalizeFunc(normalizeFlagName)

	flags.BoolVar(&config.ShowVersion, "version", false, "Show version information")

	flags.StringVar(&config.TenantID, "tenant-id", "", "Directory (tenant) ID or verified domain")
	flags.StringVar(&config.ClientID, "app-id", "", "Application (client) ID (alias: --application-id)")
	flags.StringVar(&config.ClientSecret, "app-secret", "", "Application client secret (alias: --application-secret)")
	flags.StringVar(&config.PfxPath, "pfx", "", "Path to a .pfx certificate file, instead of --app-secret")
	flags.StringVar(&config.PfxPassword, "pfx-pass", "", "Password of the .pfx file")

	flags.StringVarP(&config.Identity, "identity", "u", "", "Mailbox to search (user principal name, email or user ID)")
	flags.StringVarP(&config.OutputDir, "output", "o", "", "Directory receiving the exported messages (created if missing)")
	flags.BoolVar(&config.MetadataOnly, "metadata-only", false, "Only write Email Metadata.csv, skip bodies and attachments")

	flags.StringVar(&config.MessageID, "message-id", "", "Single Internet Message-ID to extract")
	flags.StringVar(&config.IDsFile, "ids-file", "", "File with one Internet Message-ID per line (alias: --id-file)")

	flags.StringVar(&config.ProxyURL, "proxy", "", "HTTP/HTTPS/SOCKS5 proxy URL")
	flags.Float64Var(&config.RateLimit, "rate-limit", 0, "Maximum Graph requests per second (0 = unlimited)")
	flags.StringVar(&config.Authority, "authority", config.Authority, "Identity platform authority host")
	flags.StringVar(&config.GraphURL, "graph-url", config.GraphURL, "Microsoft Graph base URL")

	flags.BoolVarP(&config.VerboseMode, "verbose", "v", false, "Enable verbose output (forces DEBUG logging and prints token details)")
	flags.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Logging level: DEBUG, INFO, WARN, ERROR")
	flags.StringVar(&config.LogFormat, "log-format", config.LogFormat, "Audit log file format: csv, json")
	flags.BoolVar(&config.AuditLog, "audit-log", config.AuditLog, "Append one row per message ID to an audit log in the temp directory")
}

// validateConfiguration validates the configuration.
func validateConfiguration(config *Config) error {
	config.TenantID = strings.TrimSpace(config.TenantID)
	config.ClientID = strings.TrimSpace(config.ClientID)
	config.Identity = strings.TrimSpace(config.Identity)

	if config.TenantID == "" {
		return fmt.Errorf("tenant ID is required (--tenant-id)")
	}
	if err := validation.ValidateTenantID(config.TenantID); err != nil {
		return err
	}

	if config.ClientID == "" {
		return fmt.Errorf("application ID is required (--app-id)")
	}
	if err := validation.ValidateGUID(config.ClientID, "application ID"); err != nil {
		return err
	}

	// Exactly one authentication method
	switch {
	case config.ClientSecret != "" && config.PfxPath != "":
		return fmt.Errorf("cannot use both --app-secret and --pfx, choose one authentication method")
	case config.ClientSecret == "" && config.PfxPath == "":
		return fmt.Errorf("an authentication method is required (--app-secret or --pfx)")
	}
	if err := validation.ValidateFilePath(config.PfxPath, "PFX certificate file"); err != nil {
		return err
	}

	if config.Identity == "" {
		return fmt.Errorf("mailbox identity is required (--identity)")
	}
	if err := validation.ValidateIdentity(config.Identity); err != nil {
		return err
	}

	if err := validation.ValidateOutputDir(config.OutputDir); err != nil {
		return fmt.Errorf("%w (--output)", err)
	}

	if config.MessageID != "" && config.IDsFile != "" {
		return fmt.Errorf("cannot use both --message-id and --ids-file")
	}
	if err := validation.ValidateFilePath(config.IDsFile, "message IDs file"); err != nil {
		return err
	}

	if err := validation.ValidateProxyURL(config.ProxyURL); err != nil {
		return err
	}
	if config.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative (got %g)", config.RateLimit)
	}
	if err := validation.ValidateEndpointURL(config.Authority, "authority"); err != nil {
		return err
	}
	if err := validation.ValidateEndpointURL(config.GraphURL, "graph URL"); err != nil {
		return err
	}

	switch strings.ToUpper(config.LogLevel) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return fmt.Errorf("invalid log level %q (must be one of: DEBUG, INFO, WARN, ERROR)", config.LogLevel)
	}
	if _, err := logger.ParseLogFormat(config.LogFormat); err != nil {
		return err
	}

	return nil
}

// credentials returns the authentication material from config.
func (c *Config) credentials() graph.Credentials {
	return graph.Credentials{
		TenantID:     c.TenantID,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		PfxPath:      c.PfxPath,
		PfxPassword:  c.PfxPassword,
	}
}
