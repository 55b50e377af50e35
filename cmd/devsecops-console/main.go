package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/BBarkseeun/devsecops-console/pkg/backend"
	"github.com/BBarkseeun/devsecops-console/pkg/catalog"
	"github.com/BBarkseeun/devsecops-console/pkg/config"
	"github.com/BBarkseeun/devsecops-console/pkg/credentials"
	"github.com/BBarkseeun/devsecops-console/pkg/nav"
	"github.com/BBarkseeun/devsecops-console/pkg/provider"
	"github.com/BBarkseeun/devsecops-console/pkg/report"
	consolefmt "github.com/BBarkseeun/devsecops-console/pkg/report/format"
	"github.com/BBarkseeun/devsecops-console/pkg/scan"
	"github.com/BBarkseeun/devsecops-console/pkg/session"
	"github.com/BBarkseeun/devsecops-console/pkg/state"
	"github.com/BBarkseeun/devsecops-console/pkg/tui"
)

// build-time override (e.g. -ldflags "-X main.version=1.2.3")
var version = "dev"

// Global (root-level) flag variables
var (
	flagVerbose bool
	flagDebug   bool
	flagConfig  string
)

// credential flags shared by login and scan
type credentialFlags struct {
	accessKey  string
	secretKey  string
	instanceID string
	repoToken  string
}

var credFlags credentialFlags

func main() {
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root Cobra command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devsecops-console",
		Short: "DevSecOps Console CLI",
		Long: strings.TrimSpace(`
DevSecOps Console - CI/CD pipeline security scanning

Sign in with a credential bundle, browse the repositories visible to the
session, and run a two-phase security scan (CI config retrieval followed
by the scan itself) against a selected repository.`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initLogging()
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (info) logging")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging (overrides --verbose)")
	cmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to a YAML or TOML configuration file")
	cmd.Version = version

	cmd.AddCommand(newUICmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newReposCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("DevSecOps Console version: %s\n", version)
		},
	}
}

func initLogging() {
	var level slog.Level
	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	default:
		level = slog.LevelWarn
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging initialized", "level", level.String())
}

// loadConfig loads the configuration file if one was given, or the
// defaults otherwise.
func loadConfig() (*config.Config, error) {
	if flagConfig == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func keyStore(cfg *config.Config) state.KeyStore {
	path := cfg.StateFile
	if path == "" {
		path = state.DefaultStatePath()
	}
	return state.NewFileKeyStore(path)
}

func backendClient(cfg *config.Config) (*backend.Client, error) {
	if cfg.Backend.BaseURL == "" {
		return nil, errors.New("no backend configured (set backend.baseUrl in the config file)")
	}
	hc := &http.Client{Timeout: cfg.Backend.Timeout.Std()}
	return backend.NewClient(cfg.Backend.BaseURL, backend.WithHTTPClient(hc))
}

/* ---------- ui ---------- */

var flagPage string

func newUICmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "ui",
		Short: "Launch the interactive console",
		Long: strings.TrimSpace(`
Launch the interactive terminal UI. The --page flag deep-links into a
specific page by name; pages reached this way start from their empty
shell because session data is not persisted across launches.`),
		Args: cobra.NoArgs,
		RunE: runUI,
	}

	c.Flags().StringVar(&flagPage, "page", "", "Start on a specific page (selectionMenu|credentialInput|repositoryList|scanInProgress|scanResult|infra)")

	return c
}

func runUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := backendClient(cfg)
	if err != nil {
		return err
	}

	keys := keyStore(cfg)
	gateway := session.NewGateway(client, keys)
	orch := scan.NewOrchestrator(client, keys)

	v := url.Values{}
	if flagPage != "" {
		v.Set("page", flagPage)
	}
	initial := nav.DecodePage(v)

	model := tui.New(gateway, orch, initial)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run UI: %w", err)
	}
	return nil
}

/* ---------- login ---------- */

func newLoginCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "login",
		Short: "Establish a session with the scanning backend",
		Long: strings.TrimSpace(`
Validate a credential bundle, create a backend session, and store the
access key for later scan commands. Every field is optional, but at
least one is required. Secrets not supplied via flags or environment
are prompted for without echo.

Environment:
  DEVSECOPS_ACCESS_KEY, DEVSECOPS_SECRET_KEY,
  DEVSECOPS_INSTANCE_ID, DEVSECOPS_REPO_TOKEN`),
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	addCredentialFlags(c)
	return c
}

func addCredentialFlags(c *cobra.Command) {
	c.Flags().StringVar(&credFlags.accessKey, "access-key", "", "AWS access key (AKIA...)")
	c.Flags().StringVar(&credFlags.secretKey, "secret-key", "", "AWS secret key")
	c.Flags().StringVar(&credFlags.instanceID, "instance-id", "", "EC2 instance ID (i-...)")
	c.Flags().StringVar(&credFlags.repoToken, "token", "", "Repository access token")
}

// collectBundle merges flags, environment, and interactive prompts into a
// credential bundle. Prompts only fire on a terminal and only when the
// flag bundle is otherwise empty.
func collectBundle() (credentials.Bundle, error) {
	b := credentials.Bundle{
		AccessKey:  firstNonEmpty(credFlags.accessKey, os.Getenv("DEVSECOPS_ACCESS_KEY")),
		SecretKey:  firstNonEmpty(credFlags.secretKey, os.Getenv("DEVSECOPS_SECRET_KEY")),
		InstanceID: firstNonEmpty(credFlags.instanceID, os.Getenv("DEVSECOPS_INSTANCE_ID")),
		RepoToken:  firstNonEmpty(credFlags.repoToken, os.Getenv("DEVSECOPS_REPO_TOKEN")),
	}

	if b.Empty() && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Print("AWS access key (optional): ")
		fmt.Scanln(&b.AccessKey)
		secret, err := promptSecret("AWS secret key (optional): ")
		if err != nil {
			return b, err
		}
		b.SecretKey = secret
		fmt.Print("EC2 instance ID (optional): ")
		fmt.Scanln(&b.InstanceID)
		token, err := promptSecret("Repository token (optional): ")
		if err != nil {
			return b, err
		}
		b.RepoToken = token
	}

	return b, nil
}

func promptSecret(label string) (string, error) {
	fmt.Print(label)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return string(raw), nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := backendClient(cfg)
	if err != nil {
		return err
	}

	bundle, err := collectBundle()
	if err != nil {
		return err
	}
	if fieldErrs := bundle.Validate(); len(fieldErrs) > 0 {
		for field, msg := range fieldErrs {
			fmt.Fprintf(os.Stderr, "%s: %s\n", field, msg)
		}
		return errors.New("credential validation failed")
	}

	gateway := session.NewGateway(client, keyStore(cfg))
	repos, err := gateway.Establish(cmd.Context(), bundle)
	if err != nil {
		return fmt.Errorf("failed to establish session: %w", err)
	}

	fmt.Printf("Signed in. %d repositories available.\n", len(repos))
	return nil
}

/* ---------- repos ---------- */

type reposFlags struct {
	search   string
	language string
	sortKey  string
	noColor  bool
	token    string
}

var repoFlags reposFlags

func newReposCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "repos",
		Short: "List the repositories visible to the session",
		Long: strings.TrimSpace(`
List repositories. With a backend configured this uses the stored
session; without one the configured provider (GitLab or GitHub) is
queried directly using a provider token.

Examples:
  devsecops-console repos --search api --sort stars
  devsecops-console repos --language Go --sort lastActivity`),
		Args: cobra.NoArgs,
		RunE: runRepos,
	}

	c.Flags().StringVar(&repoFlags.search, "search", "", "Filter by name or description substring")
	c.Flags().StringVar(&repoFlags.language, "language", "", "Filter by language (\"all\" disables)")
	c.Flags().StringVar(&repoFlags.sortKey, "sort", "name", "Sort order: name|stars|lastActivity")
	c.Flags().BoolVar(&repoFlags.noColor, "no-color", false, "Disable ANSI colors")
	c.Flags().StringVar(&repoFlags.token, "token", "", "Provider token (falls back to DEVSECOPS_PROVIDER_TOKEN)")

	return c
}

func runRepos(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sortKey, err := catalog.ParseSortKey(repoFlags.sortKey)
	if err != nil {
		return err
	}

	repos, err := fetchRepositories(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	query := catalog.Query{
		Search:   repoFlags.search,
		Language: repoFlags.language,
		Sort:     sortKey,
	}
	visible := query.Apply(repos)
	if len(visible) == 0 {
		fmt.Println("No repositories match.")
		return nil
	}

	renderRepoTable(visible, os.Stdout)
	return nil
}

// fetchRepositories prefers the backend session and falls back to a
// direct provider listing when no backend is configured.
func fetchRepositories(ctx context.Context, cfg *config.Config) ([]catalog.Repository, error) {
	if cfg.Backend.BaseURL != "" {
		client, err := backendClient(cfg)
		if err != nil {
			return nil, err
		}
		key, err := keyStore(cfg).AccessKey()
		if err != nil {
			return nil, fmt.Errorf("sign in first: %w", err)
		}
		raw, err := client.ListProjects(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories: %w", err)
		}
		return catalog.Normalize(raw, time.Now())
	}

	token := firstNonEmpty(repoFlags.token, os.Getenv("DEVSECOPS_PROVIDER_TOKEN"))
	if token == "" {
		return nil, errors.New("no backend configured and no provider token given")
	}
	src, err := provider.New(cfg.Provider.Name, provider.Config{
		Token:   token,
		BaseURL: cfg.Provider.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	return src.ListRepositories(ctx)
}

func renderRepoTable(repos []catalog.Repository, w *os.File) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Name", "Language", "Stars", "Visibility", "Last Activity"})
	for _, r := range repos {
		tw.AppendRow(table.Row{
			r.ID, r.Name, r.Language, r.StarCount, r.Visibility,
			r.LastActivity.Format("2006-01-02"),
		})
	}
	tw.Render()
}

/* ---------- scan ---------- */

type scanFlags struct {
	outputFormat string
	noColor      bool
	jsonIndent   bool
}

var scFlags scanFlags

func newScanCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "scan <repository-id>",
		Short: "Run a security scan against a repository",
		Long: strings.TrimSpace(`
Run the two-phase scan: retrieve the repository's CI configuration,
then invoke the scanner. A failed CI retrieval is reported as a warning
and the scan still runs. Requires a prior 'login'.

Formats:
  console (default) - human-readable summary
  json              - raw scan report`),
		Args: cobra.ExactArgs(1),
		RunE: runScanCommand,
	}

	c.Flags().StringVarP(&scFlags.outputFormat, "format", "f", "console", "Output format: console|json")
	c.Flags().BoolVar(&scFlags.noColor, "no-color", false, "Disable ANSI colors (console format)")
	c.Flags().BoolVar(&scFlags.jsonIndent, "json-indent", false, "Pretty-print JSON output")

	return c
}

func runScanCommand(cmd *cobra.Command, args []string) error {
	repoID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := backendClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout.Std())
	defer cancel()

	orch := scan.NewOrchestrator(client, keyStore(cfg))

	slog.Info("Starting scan", "repository", repoID)
	outcome := orch.Run(ctx, repoID)

	if outcome.Warning != "" {
		fmt.Fprintln(os.Stderr, "Warning: "+outcome.Warning)
	}
	if outcome.Kind == scan.OutcomeFailure {
		return fmt.Errorf("scan failed: %s", outcome.Message)
	}

	switch strings.ToLower(scFlags.outputFormat) {
	case "console":
		formatter := consolefmt.NewConsoleFormatter()
		formatter.EnableColors = !scFlags.noColor
		if err := formatter.Render(report.Parse(outcome.Report), os.Stdout); err != nil {
			return fmt.Errorf("failed to render scan report: %w", err)
		}
	case "json":
		data := []byte(outcome.Report)
		if scFlags.jsonIndent {
			var buf strings.Builder
			var obj any
			if err := json.Unmarshal(data, &obj); err == nil {
				enc := json.NewEncoder(&buf)
				enc.SetIndent("", "  ")
				if err := enc.Encode(obj); err == nil {
					data = []byte(buf.String())
				}
			}
		}
		os.Stdout.Write(data)
		if len(data) == 0 || data[len(data)-1] != '\n' {
			fmt.Println()
		}
	default:
		return fmt.Errorf("unsupported format: %s", scFlags.outputFormat)
	}

	return nil
}
