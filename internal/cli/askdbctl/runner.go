package askdbctl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/nl2sql"
)

type Options struct {
	BaseURL    string
	Password   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// usageError marks failures that should exit with status 2.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }

// Run executes one askdbctl command and returns the process exit code.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	stdin := defaults.Stdin
	if stdin == nil {
		stdin = strings.NewReader("")
	}

	r := &runner{defaults: defaults, stdin: stdin, stdout: stdout}
	root := r.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		var usage usageError
		if errors.As(err, &usage) || isCobraUsageError(err) {
			_, _ = fmt.Fprintln(stderr)
			_, _ = fmt.Fprint(stderr, root.UsageString())
			return 2
		}
		return 1
	}
	return 0
}

type runner struct {
	defaults Options
	stdin    io.Reader
	stdout   io.Writer

	baseURL string
	timeout time.Duration
}

func (r *runner) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "askdbctl",
		Short:         "Drive an askdb API session from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return usageError{err: errors.New("a command is required")}
		},
	}
	root.PersistentFlags().StringVar(&r.baseURL, "base-url", firstNonEmpty(r.defaults.BaseURL, "http://localhost:8080"), "askdb API base URL")
	root.PersistentFlags().DurationVar(&r.timeout, "timeout", durationOr(r.defaults.Timeout, 2*time.Minute), "HTTP timeout (e.g. 30s)")

	root.AddCommand(
		r.simple("health", "Check API liveness", http.MethodGet, "/v1/health"),
		r.simple("ready", "Check oracle readiness", http.MethodGet, "/v1/ready"),
		r.simple("session", "Show the current session", http.MethodGet, "/v1/session"),
		r.simple("history", "List answered questions", http.MethodGet, "/v1/history"),
		r.simple("clear-history", "Delete all history records", http.MethodDelete, "/v1/history"),
		r.connectCommand(),
		r.nameCommand("use", "Select a database", "/v1/session/database"),
		r.nameCommand("table", "Select a table", "/v1/session/table"),
		r.askCommand(),
		r.sanitizeCommand(),
	)
	return root
}

func (r *runner) simple(use, short, method, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.call(cmd.Context(), method, path, nil)
		},
	}
}

func (r *runner) connectCommand() *cobra.Command {
	var (
		host          string
		port          string
		username      string
		password      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect the session to a SQL Server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if passwordStdin {
				line, err := bufio.NewReader(r.stdin).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read password from stdin: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			} else if !cmd.Flags().Changed("password") {
				password = r.defaults.Password
			}
			return r.call(cmd.Context(), http.MethodPost, "/v1/session/connect", map[string]string{
				"host":     host,
				"port":     port,
				"username": username,
				"password": password,
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "", `server host, HOST or HOST\INSTANCE`)
	cmd.Flags().StringVar(&port, "port", "", "server port")
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "login password (prefer --password-stdin or ASKDB_PASSWORD)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (r *runner) nameCommand(use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.call(cmd.Context(), http.MethodPost, path, map[string]string{"name": args[0]})
		},
	}
}

func (r *runner) askCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the selected table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.call(cmd.Context(), http.MethodPost, "/v1/questions", map[string]string{"question": strings.Join(args, " ")})
		},
	}
}

// sanitizeCommand runs the sanitizer locally on stdin, or on its arguments.
func (r *runner) sanitizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sanitize [text]",
		Short: "Clean model output into a single SQL statement",
		RunE: func(_ *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				raw, err := io.ReadAll(r.stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(raw)
			}
			_, _ = fmt.Fprintln(r.stdout, nl2sql.Sanitize(text))
			return nil
		},
	}
}

func (r *runner) call(ctx context.Context, method, path string, payload any) error {
	client := r.defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: r.timeout}
	}
	endpoint := strings.TrimRight(r.baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if code >= 400 {
		return fmt.Errorf("http %d: %s", code, strings.TrimSpace(string(responseBody)))
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(r.stdout, pretty)
		return nil
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(r.stdout, string(responseBody))
	}
	return nil
}

func doRequest(ctx context.Context, client *http.Client, method, url string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func isCobraUsageError(err error) bool {
	message := err.Error()
	for _, marker := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "accepts ", "requires at least", "required flag", "flag needs an argument", "invalid argument"} {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
