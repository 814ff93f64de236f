package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"specli/configs"
	"specli/internal/adapter/outbound/credstore"
	"specli/internal/adapter/outbound/httpinvoker"
	"specli/internal/adapter/outbound/openapi"
	"specli/internal/adapter/outbound/respcache"
	"specli/internal/usecase"
)

// App wires the configuration and adapters into the cobra command tree.
type App struct {
	cfg    *configs.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer

	httpClient *http.Client
	prompt     credstore.PromptFunc
}

func NewApp(cfg *configs.Config, logger *slog.Logger, stdout, stderr io.Writer) *App {
	return &App{
		cfg:        cfg,
		logger:     logger,
		stdout:     stdout,
		stderr:     stderr,
		httpClient: &http.Client{Timeout: cfg.HTTPClientTimeout},
		prompt:     credstore.TerminalPrompt,
	}
}

// Run builds the command tree for the given arguments and executes it.
// The generated api commands are only mounted when the invocation actually
// targets them, so management commands never pay for a schema fetch.
func (a *App) Run(ctx context.Context, args []string) error {
	root := a.newRootCommand()

	if wantsGenerated(args) {
		a.mountAPI(ctx, root, args)
	}

	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "specli",
		Short:         "Generate and run a CLI for any OpenAPI-described service.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().String("profile", "", "Profile to use (defaults to the configured default profile)")
	root.PersistentFlags().String("output", "auto", "Output mode: auto, json, or raw")
	root.PersistentFlags().Bool("dry-run", false, "Render the request instead of sending it")
	root.PersistentFlags().Bool("no-cache", false, "Bypass the response cache")

	root.AddCommand(
		a.newInitCommand(),
		a.newProfilesCommand(),
		a.newInspectCommand(),
		a.newCacheCommand(),
		a.newAuthCommand(),
	)
	return root
}

// wantsGenerated reports whether the invocation targets the generated api
// group (including help for it).
func wantsGenerated(args []string) bool {
	for _, arg := range args {
		if arg == "api" {
			return true
		}
	}
	return false
}

// mountAPI generates the api command group for the selected profile. Any
// failure mounts a stub that reports the error on use: broken generation
// must never take the management commands down.
func (a *App) mountAPI(ctx context.Context, root *cobra.Command, args []string) {
	apiCmd, err := a.buildAPICommand(ctx, args)
	if err != nil {
		a.logger.Error("Failed to generate api commands", slog.Any("error", err))
		genErr := err
		apiCmd = &cobra.Command{
			Use:   "api",
			Short: "Call the configured API (generation failed)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return fmt.Errorf("api commands unavailable: %w", genErr)
			},
		}
		apiCmd.DisableFlagParsing = true
	}
	root.AddCommand(apiCmd)
}

func (a *App) buildAPICommand(ctx context.Context, args []string) (*cobra.Command, error) {
	profile, err := a.cfg.FindProfile(scanFlag(args, "profile"))
	if err != nil {
		return nil, err
	}

	store := credstore.NewStore(a.cfg.CredentialsPath())
	auth, err := credstore.NewAuthenticator(profile.Auth, store, a.prompt)
	if err != nil {
		return nil, fmt.Errorf("configuring authentication for profile %s: %w", profile.Name, err)
	}

	opts := []httpinvoker.Option{}
	if auth != nil {
		opts = append(opts, httpinvoker.WithAuthenticator(auth))
	}
	if !scanBoolFlag(args, "no-cache") {
		cache := respcache.New(a.cfg.CacheDir(), a.cfg.CacheTTL, a.logger)
		opts = append(opts, httpinvoker.WithCache(cache))
	}
	if profile.Request.RetryAttempts > 0 {
		opts = append(opts, httpinvoker.WithRetry(profile.Request.RetryAttempts, time.Second))
	}
	if len(profile.Request.Headers) > 0 {
		opts = append(opts, httpinvoker.WithDefaultHeaders(profile.Request.Headers))
	}

	client := a.httpClient
	if profile.Request.TimeoutSeconds > 0 {
		client = &http.Client{Timeout: time.Duration(profile.Request.TimeoutSeconds) * time.Second}
	}
	invoker := httpinvoker.New(client, a.logger, opts...)

	fetcher := openapi.NewSpecFetcher(a.httpClient, a.logger)
	generateUC := usecase.NewGenerateCLIUseCase(fetcher, a.logger)

	renderer := NewRenderer(a.stdout, OutputAuto)

	// The invoke use case needs the parsed spec, which generation
	// produces; bind the leaves through an indirection filled in below.
	var invokeUC *usecase.InvokeOperationUseCase
	exec := func(ctx context.Context, method, pathTemplate string, params map[string]any, body, contentType string) error {
		return invokeUC.Execute(ctx, method, pathTemplate, params, body, contentType)
	}

	tree, spec, err := generateUC.Execute(ctx, profile.Spec, profile.Rules(), exec)
	if err != nil {
		return nil, err
	}

	baseURL := profile.BaseURL
	if baseURL == "" && len(spec.Servers) > 0 {
		baseURL = spec.Servers[0].URL
	}
	if baseURL == "" {
		return nil, fmt.Errorf("profile %s has no base_url and the schema declares no servers", profile.Name)
	}
	invokeUC = usecase.NewInvokeOperationUseCase(spec, invoker, baseURL, renderer.Render, a.logger)

	apiCmd := &cobra.Command{
		Use:   "api",
		Short: fmt.Sprintf("Call %s", orDefault(spec.Info.Title, "the configured API")),
		Long:  tree.Help,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := ParseOutputMode(mustString(cmd.Flags().GetString("output")))
			if err != nil {
				return err
			}
			renderer.mode = mode
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			invokeUC.SetDryRun(dryRun)
			return nil
		},
	}
	MountTree(apiCmd, tree)
	return apiCmd, nil
}

func (a *App) newInitCommand() *cobra.Command {
	var (
		profile configs.Profile
		useIt   bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Register an API profile from its schema source",
		RunE: func(cmd *cobra.Command, args []string) error {
			if profile.Spec == "" {
				return fmt.Errorf("--spec is required")
			}

			fetcher := openapi.NewSpecFetcher(a.httpClient, a.logger)
			spec, err := fetcher.Parse(cmd.Context(), profile.Spec)
			if err != nil {
				return err
			}

			if profile.Name == "" {
				profile.Name = slugFromTitle(spec.Info.Title)
			}
			if profile.BaseURL == "" && len(spec.Servers) > 0 {
				profile.BaseURL = spec.Servers[0].URL
			}

			a.cfg.UpsertProfile(profile)
			if useIt || len(a.cfg.Profiles) == 1 {
				a.cfg.DefaultProfile = profile.Name
			}
			if err := a.cfg.SaveProfiles(); err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "Profile %q registered (%s, %d operations).\n",
				profile.Name, spec.Info.Title, len(spec.Operations))
			return nil
		},
	}

	cmd.Flags().StringVar(&profile.Name, "name", "", "Profile name (defaults to a slug of the API title)")
	cmd.Flags().StringVar(&profile.Spec, "spec", "", "Schema source: URL, file path, or - for stdin")
	cmd.Flags().StringVar(&profile.BaseURL, "base-url", "", "Base URL override (defaults to the schema's first server)")
	cmd.Flags().StringVar(&profile.Auth.Type, "auth-type", "", "Authentication type: api-key, bearer, or basic")
	cmd.Flags().StringVar(&profile.Auth.Name, "auth-name", "", "Parameter name for api-key auth")
	cmd.Flags().StringVar(&profile.Auth.In, "auth-in", "", "Location for api-key auth: header, query, or cookie")
	cmd.Flags().StringVar(&profile.Auth.Value, "auth-value", "", "Secret reference: literal, env:NAME, file:PATH, store:NAME, or prompt")
	cmd.Flags().StringVar(&profile.Auth.Username, "auth-username", "", "Username for basic auth")
	cmd.Flags().StringVar(&profile.Auth.Password, "auth-password", "", "Password reference for basic auth")
	cmd.Flags().BoolVar(&useIt, "use", false, "Make this the default profile")
	return cmd
}

func (a *App) newProfilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage API profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printProfiles()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printProfiles()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "use <name>",
		Short: "Set the default profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.cfg.FindProfile(args[0]); err != nil {
				return err
			}
			a.cfg.DefaultProfile = args[0]
			if err := a.cfg.SaveProfiles(); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Default profile set to %q.\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RemoveProfile(args[0]); err != nil {
				return err
			}
			if err := a.cfg.SaveProfiles(); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Profile %q removed.\n", args[0])
			return nil
		},
	})

	return cmd
}

func (a *App) printProfiles() error {
	if len(a.cfg.Profiles) == 0 {
		fmt.Fprintln(a.stdout, "No profiles configured. Run `specli init --spec <url>` to add one.")
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSPEC\tBASE URL\tAUTH")
	for _, p := range a.cfg.Profiles {
		name := p.Name
		if name == a.cfg.DefaultProfile {
			name += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, p.Spec, p.BaseURL, orDefault(p.Auth.Type, "none"))
	}
	return w.Flush()
}

func (a *App) newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List the operations the selected profile's schema declares",
		RunE: func(cmd *cobra.Command, args []string) error {
			profileName, _ := cmd.Flags().GetString("profile")
			profile, err := a.cfg.FindProfile(profileName)
			if err != nil {
				return err
			}

			fetcher := openapi.NewSpecFetcher(a.httpClient, a.logger)
			spec, err := fetcher.Parse(cmd.Context(), profile.Spec)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "%s %s (OpenAPI %s)\n\n",
				spec.Info.Title, spec.Info.Version, spec.OpenAPIVersion)

			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tPATH\tOPERATION\tSUMMARY")
			for _, op := range spec.Operations {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					strings.ToUpper(string(op.Method)), op.Path, op.OperationID, firstLine(op.Summary))
			}
			return w.Flush()
		},
	}
}

func (a *App) newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache entry count and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := respcache.New(a.cfg.CacheDir(), a.cfg.CacheTTL, a.logger).Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%d entries, %d bytes\n", stats.Entries, stats.SizeBytes)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove all cached responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := respcache.New(a.cfg.CacheDir(), a.cfg.CacheTTL, a.logger).Clear(); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "Cache cleared.")
			return nil
		},
	})

	return cmd
}

func (a *App) newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored credentials",
	}
	store := func() *credstore.Store {
		return credstore.NewStore(a.cfg.CredentialsPath())
	}

	setCmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a credential (prompts unless --value is given)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, _ := cmd.Flags().GetString("value")
			if value == "" {
				var err error
				value, err = a.prompt("Value for " + args[0])
				if err != nil {
					return err
				}
			}
			if err := store().Set(args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Credential %q stored.\n", args[0])
			return nil
		},
	}
	setCmd.Flags().String("value", "", "Credential value (omit to be prompted)")
	cmd.AddCommand(setCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored credential names",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := store().List()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.stdout, name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store().Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Credential %q removed.\n", args[0])
			return nil
		},
	})

	return cmd
}

// scanFlag pulls a string flag value out of raw arguments before cobra
// parses them; the api tree has to be generated first.
func scanFlag(args []string, name string) string {
	long := "--" + name
	for i, arg := range args {
		if arg == long && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, long+"=") {
			return strings.TrimPrefix(arg, long+"=")
		}
	}
	return ""
}

func scanBoolFlag(args []string, name string) bool {
	long := "--" + name
	value := false
	for _, arg := range args {
		switch {
		case arg == long:
			value = true
		case strings.HasPrefix(arg, long+"="):
			parsed, err := strconv.ParseBool(strings.TrimPrefix(arg, long+"="))
			value = err == nil && parsed
		}
	}
	return value
}

func slugFromTitle(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = strings.NewReplacer(" ", "-", "_", "-").Replace(slug)
	var b strings.Builder
	for _, c := range slug {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return "default"
	}
	return strings.Trim(b.String(), "-")
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func mustString(s string, _ error) string {
	return s
}
