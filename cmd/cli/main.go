package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"practice-judge/internal/config"
	"practice-judge/internal/problems"
	"practice-judge/internal/run"
	"practice-judge/internal/runtime"
	"practice-judge/internal/sandbox"
	"practice-judge/internal/session"
	"practice-judge/internal/validation"
)

var (
	serverURL string
	token     string
	language  string
	problemID string
	stdin     string
	timeout   string
	local     bool
	runUser   string
	runStatus string
	runLimit  int
)

func main() {
	// .env is optional for the CLI.
	_ = config.LoadEnv()

	root := &cobra.Command{
		Use:   "judge-cli",
		Short: "CLI client for the practice judge",
	}

	root.PersistentFlags().StringVar(&serverURL, "server", envOr("JUDGE_SERVER", "http://localhost:8080"), "Server URL")
	root.PersistentFlags().StringVar(&token, "token", os.Getenv("JUDGE_TOKEN"), "Session token from `login`")

	runCmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run a solution against a problem's examples",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRun,
	}
	runCmd.Flags().StringVarP(&language, "language", "l", "", "Language (auto-detected from extension)")
	runCmd.Flags().StringVarP(&problemID, "problem", "p", "", "Problem ID whose examples are the test cases")
	runCmd.Flags().StringVar(&stdin, "stdin", "", "Program input when no problem is given")
	runCmd.Flags().StringVar(&timeout, "timeout", "", "Run timeout, e.g. 60s")
	runCmd.Flags().BoolVar(&local, "local", false, "Run in-process against the simulator")
	root.AddCommand(runCmd)

	execCmd := &cobra.Command{
		Use:   "exec [file]",
		Short: "Execute code once without validation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExec,
	}
	execCmd.Flags().StringVarP(&language, "language", "l", "", "Language (auto-detected from extension)")
	execCmd.Flags().StringVar(&stdin, "stdin", "", "Program input")
	root.AddCommand(execCmd)

	root.AddCommand(&cobra.Command{
		Use:   "problems [id]",
		Short: "List problems or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runProblems,
	})

	starterCmd := &cobra.Command{
		Use:   "starter [id]",
		Short: "Print a problem's starter code",
		Args:  cobra.ExactArgs(1),
		RunE:  runStarter,
	}
	starterCmd.Flags().StringVarP(&language, "language", "l", "javascript", "Language")
	root.AddCommand(starterCmd)

	loginCmd := &cobra.Command{
		Use:   "login [username]",
		Short: "Log in and print a session token",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogin,
	}
	root.AddCommand(loginCmd)

	root.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE:  runHealth,
	})

	runsCmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List your recent runs or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRuns,
	}
	runsCmd.Flags().StringVarP(&language, "language", "l", "", "Filter by language")
	runsCmd.Flags().StringVar(&runStatus, "status", "", "Filter by status")
	runsCmd.Flags().IntVar(&runLimit, "limit", 20, "Maximum runs to list")
	root.AddCommand(runsCmd)

	root.PersistentFlags().StringVar(&runUser, "user", envOr("USER", "local"), "Username for --local runs")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	code, err := readCode(args)
	if err != nil {
		return err
	}

	if local {
		return runLocal(cmd.Context(), code)
	}

	payload := map[string]any{
		"code":     code,
		"language": language,
	}
	if problemID != "" {
		payload["problem_id"] = problemID
	}
	if stdin != "" {
		payload["stdin"] = stdin
	}
	if timeout != "" {
		payload["timeout"] = timeout
	}

	var result run.Result
	status, err := call(http.MethodPost, "/run", payload, &result)
	if err != nil {
		return err
	}
	if result.Terminal == "" && result.Results == "" {
		return fmt.Errorf("server returned %d", status)
	}
	printResult(&result)
	return nil
}

// runLocal runs the pipeline in-process against the simulator.
func runLocal(ctx context.Context, code string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	runtimes := runtime.NewRegistry()
	engine := validation.NewEngine(sandbox.NewSimulator(runtimes, nil), nil)
	orchestrator := run.New(engine, run.Options{Runtimes: runtimes})

	req := run.Request{
		Session: session.Session{
			UserID:        session.UserID(runUser),
			Username:      runUser,
			Authenticated: true,
		},
		Code:     code,
		Language: language,
		Stdin:    stdin,
	}
	if problemID != "" {
		catalog, err := problems.Load()
		if err != nil {
			return err
		}
		p, err := catalog.Get(problemID)
		if err != nil {
			return err
		}
		req.ProblemID = p.ID
		req.TestCases = p.TestCases()
	}

	printResult(orchestrator.Run(ctx, run.NewEditor("cli"), req))
	return nil
}

func printResult(result *run.Result) {
	fmt.Print(result.Terminal)
	fmt.Println()
	fmt.Print(result.Results)

	if result.Status == run.StatusFailed || result.Status == run.StatusError {
		os.Exit(1)
	}
}

func runExec(_ *cobra.Command, args []string) error {
	code, err := readCode(args)
	if err != nil {
		return err
	}

	var resp struct {
		Formatted string `json:"formatted"`
		Error     string `json:"error"`
	}
	status, err := call(http.MethodPost, "/execute", map[string]any{
		"code":     code,
		"language": language,
		"stdin":    stdin,
	}, &resp)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("execute failed (%d): %s", status, resp.Error)
	}
	fmt.Print(resp.Formatted)
	return nil
}

func runProblems(_ *cobra.Command, args []string) error {
	path := "/problems"
	if len(args) > 0 {
		path += "/" + url.PathEscape(args[0])
	}
	return callAndPrint(http.MethodGet, path, nil)
}

func runStarter(_ *cobra.Command, args []string) error {
	catalog, err := problems.Load()
	if err != nil {
		return err
	}
	p, err := catalog.Get(args[0])
	if err != nil {
		return err
	}
	code := p.Starter(language)
	if code == "" {
		return fmt.Errorf("%s has no %s starter", p.ID, language)
	}
	fmt.Println(code)
	return nil
}

func runLogin(_ *cobra.Command, args []string) error {
	password := os.Getenv("JUDGE_PASSWORD")
	if password == "" {
		return fmt.Errorf("set JUDGE_PASSWORD to log in")
	}

	var resp struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	status, err := call(http.MethodPost, "/auth/login", map[string]any{
		"username": args[0],
		"password": password,
	}, &resp)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("login failed (%d): %s", status, resp.Error)
	}
	fmt.Println(resp.Token)
	return nil
}

func runHealth(_ *cobra.Command, _ []string) error {
	return callAndPrint(http.MethodGet, "/health", nil)
}

func runRuns(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return callAndPrint(http.MethodGet, "/runs/"+url.PathEscape(args[0]), nil)
	}
	q := url.Values{}
	q.Set("limit", fmt.Sprint(runLimit))
	if language != "" {
		q.Set("language", language)
	}
	if runStatus != "" {
		q.Set("status", runStatus)
	}
	return callAndPrint(http.MethodGet, "/runs?"+q.Encode(), nil)
}

func callAndPrint(method, path string, payload any) error {
	var result any
	if _, err := call(method, path, payload, &result); err != nil {
		return err
	}
	formatted, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(formatted))
	return nil
}

// call sends a JSON request and decodes the JSON response into out. The
// HTTP status is returned alongside so callers can report API errors.
func call(method, path string, payload, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverURL+path, body)
	if err != nil {
		return 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 6 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
	}
	return resp.StatusCode, nil
}

// readCode reads the solution from a file argument or stdin, detecting the
// language from the extension when --language is not given.
func readCode(args []string) (string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		if language == "" {
			return "", fmt.Errorf("--language is required when reading from stdin")
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	if language == "" {
		switch ext := filepath.Ext(args[0]); ext {
		case ".js":
			language = "javascript"
		case ".py":
			language = "python"
		case ".java":
			language = "java"
		case ".cpp", ".cc":
			language = "cpp"
		default:
			return "", fmt.Errorf("cannot detect language for extension %q, use --language flag", ext)
		}
	}
	return string(data), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
