package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Tool categories, as rendered in the prompt catalog.
const (
	CategorySystem      = "System"
	CategoryFiles       = "Files"
	CategoryWeb         = "Web"
	CategoryDevelopment = "Development"
)

// CoreToolOptions tunes the built-in tool set.
type CoreToolOptions struct {
	// CommandTimeout bounds run_command and the other shell-backed tools.
	// Zero means 30 seconds.
	CommandTimeout time.Duration

	// HTTPTimeout bounds http_request. Zero means 15 seconds.
	HTTPTimeout time.Duration

	// HTTPClient overrides the client used by http_request.
	HTTPClient *http.Client

	// ResponseBodyLimit caps how much of an HTTP response body is returned.
	// Zero means 10000 bytes.
	ResponseBodyLimit int

	// DeniedCommandPatterns blocks run_command invocations whose command
	// line contains any of these substrings.
	DeniedCommandPatterns []string
}

func (o CoreToolOptions) commandTimeout() time.Duration {
	if o.CommandTimeout <= 0 {
		return 30 * time.Second
	}
	return o.CommandTimeout
}

func (o CoreToolOptions) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (o CoreToolOptions) bodyLimit() int {
	if o.ResponseBodyLimit <= 0 {
		return 10000
	}
	return o.ResponseBodyLimit
}

// stringArg reads a string argument, tolerating JSON's habit of delivering
// numbers and booleans where strings were asked for.
func stringArg(args map[string]any, key, fallback string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return fallback
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// intArg reads an integer argument; JSON numbers arrive as float64.
func intArg(args map[string]any, key string, fallback int) int {
	v, ok := args[key]
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(t), "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

// RegisterCoreTools registers the built-in tool set against an environment.
// Registration order determines catalog order in prompts.
func RegisterCoreTools(r *Registry, env Environment, opts CoreToolOptions) error {
	type entry struct {
		desc    Descriptor
		handler Handler
	}

	entries := []entry{
		{
			Descriptor{
				Name:        "run_command",
				Description: "Run a shell command in the working directory",
				Category:    CategorySystem,
				Params: []Param{
					{Name: "command", Type: "string", Description: "command line to run", Required: true},
					{Name: "timeout_seconds", Type: "integer", Description: "kill the command after this many seconds", Default: 30},
				},
			},
			runCommandHandler(env, opts),
		},
		{
			Descriptor{
				Name:        "get_system_info",
				Description: "Report platform, working directory, and host facts",
				Category:    CategorySystem,
			},
			systemInfoHandler(env),
		},
		{
			Descriptor{
				Name:        "read_file",
				Description: "Read the contents of a file",
				Category:    CategoryFiles,
				Params: []Param{
					{Name: "path", Type: "string", Description: "file path, relative to the working directory", Required: true},
					{Name: "max_lines", Type: "integer", Description: "return at most this many lines"},
				},
			},
			readFileHandler(env),
		},
		{
			Descriptor{
				Name:        "write_file",
				Description: "Write content to a file, creating parent directories as needed",
				Category:    CategoryFiles,
				Params: []Param{
					{Name: "path", Type: "string", Description: "file path", Required: true},
					{Name: "content", Type: "string", Description: "full file content", Required: true},
				},
			},
			writeFileHandler(env),
		},
		{
			Descriptor{
				Name:        "list_directory",
				Description: "List the entries of a directory",
				Category:    CategoryFiles,
				Params: []Param{
					{Name: "path", Type: "string", Description: "directory path", Default: "."},
				},
			},
			listDirectoryHandler(env),
		},
		{
			Descriptor{
				Name:        "search_files",
				Description: "Search file contents for a pattern",
				Category:    CategoryFiles,
				Params: []Param{
					{Name: "pattern", Type: "string", Description: "text or regex to search for", Required: true},
					{Name: "path", Type: "string", Description: "directory to search in"},
				},
			},
			searchFilesHandler(env, opts),
		},
		{
			Descriptor{
				Name:        "http_request",
				Description: "Make an HTTP request and return status plus body",
				Category:    CategoryWeb,
				Params: []Param{
					{Name: "url", Type: "string", Description: "request URL", Required: true},
					{Name: "method", Type: "string", Description: "HTTP method", Default: "GET"},
					{Name: "body", Type: "string", Description: "request body"},
					{Name: "headers", Type: "object", Description: "request headers"},
				},
			},
			httpRequestHandler(opts),
		},
		{
			Descriptor{
				Name:        "git_operations",
				Description: "Run a common git operation",
				Category:    CategoryDevelopment,
				Params: []Param{
					{Name: "operation", Type: "string", Description: "one of status, diff, log, add, commit, branch", Required: true},
					{Name: "args", Type: "string", Description: "extra arguments, e.g. a commit message or pathspec"},
				},
			},
			gitHandler(env, opts),
		},
		{
			Descriptor{
				Name:        "manage_packages",
				Description: "Install, remove, or list packages with a package manager",
				Category:    CategoryDevelopment,
				Params: []Param{
					{Name: "action", Type: "string", Description: "one of install, uninstall, list", Required: true},
					{Name: "package", Type: "string", Description: "package name"},
					{Name: "manager", Type: "string", Description: "one of pip, npm, go", Default: "pip"},
				},
			},
			packagesHandler(env, opts),
		},
		{
			Descriptor{
				Name:        "run_tests",
				Description: "Run the project's test suite",
				Category:    CategoryDevelopment,
				Params: []Param{
					{Name: "command", Type: "string", Description: "test command; auto-detected when omitted"},
					{Name: "path", Type: "string", Description: "directory or file to test"},
				},
			},
			runTestsHandler(env, opts),
		},
	}

	for _, e := range entries {
		if err := r.Register(e.desc, e.handler); err != nil {
			return err
		}
	}
	return nil
}

// execToResult formats an ExecResult as a tool result string.
func execToResult(res *ExecResult) string {
	if res.TimedOut {
		return fmt.Sprintf("Command timed out after %dms\n%s", res.DurationMs, res.Output())
	}
	out := strings.TrimRight(res.Output(), "\n")
	if res.ExitCode != 0 {
		if out == "" {
			return fmt.Sprintf("exit code %d", res.ExitCode)
		}
		return fmt.Sprintf("exit code %d\n%s", res.ExitCode, out)
	}
	if out == "" {
		return "(no output)"
	}
	return out
}

func runCommandHandler(env Environment, opts CoreToolOptions) Handler {
	return HandlerFunc(func(args map[string]any) (string, error) {
		command := strings.TrimSpace(stringArg(args, "command", ""))
		if command == "" {
			return "", fmt.Errorf("command must not be empty")
		}
		for _, pattern := range opts.DeniedCommandPatterns {
			if pattern != "" && strings.Contains(command, pattern) {
				return "", fmt.Errorf("command blocked by policy: matches %q", pattern)
			}
		}
		timeout := opts.commandTimeout()
		if secs := intArg(args, "timeout_seconds", 0); secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
		res, err := env.ExecCommand(context.Background(), command, timeout)
		if err != nil {
			return "", err
		}
		return execToResult(res), nil
	})
}

func systemInfoHandler(env Environment) Handler {
	return HandlerFunc(func(map[string]any) (string, error) {
		hostname, _ := os.Hostname()
		var b strings.Builder
		fmt.Fprintf(&b, "platform: %s\n", env.Platform())
		fmt.Fprintf(&b, "hostname: %s\n", hostname)
		fmt.Fprintf(&b, "working_directory: %s\n", env.WorkingDirectory())
		fmt.Fprintf(&b, "cpus: %d\n", runtime.NumCPU())
		fmt.Fprintf(&b, "go_version: %s", runtime.Version())
		return b.String(), nil
	})
}

func readFileHandler(env Environment) Handler {
	return HandlerFunc(func(args map[string]any) (string, error) {
		path := stringArg(args, "path", "")
		if path == "" {
			return "", fmt.Errorf("path must not be empty")
		}
		content, err := env.ReadFile(path)
		if err != nil {
			return "", err
		}
		if max := intArg(args, "max_lines", 0); max > 0 {
			lines := strings.Split(content, "\n")
			if len(lines) > max {
				content = strings.Join(lines[:max], "\n") +
					fmt.Sprintf("\n... (%d more lines)", len(lines)-max)
			}
		}
		return content, nil
	})
}

func writeFileHandler(env Environment) Handler {
	return HandlerFunc(func(args map[string]any) (string, error) {
		path := stringArg(args, "path", "")
		if path == "" {
			return "", fmt.Errorf("path must not be empty")
		}
		content := stringArg(args, "content", "")
		if err := env.WriteFile(path, content); err != nil {
			return "", err
		}
		return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
	})
}

func listDirectoryHandler(env Environment) Handler {
	return HandlerFunc(func(args map[string]any) (string, error) {
		path := stringArg(args, "path", ".")
		entries, err := env.ListDirectory(path)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "(empty directory)", nil
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		var b strings.Builder
		for _, e := range entries {
			if e.IsDir {
				fmt.Fprintf(&b, "%s/\n", e.Name)
			} else {
				fmt.Fprintf(&b, "%s (%d bytes)\n", e.Name, e.Size)
			}
		}
		return strings.TrimRight(b.String(), "\n"), nil
	})
}

func searchFilesHandler(env Environment, opts CoreToolOptions) Handler {
	return HandlerFunc(func(args map[string]any) (string, error) {
		pattern := stringArg(args, "pattern", "")
		if pattern == "" {
			return "", fmt.Errorf("pattern must not be empty")
		}
		ctx, cancel := context.WithTimeout(context.Background(), opts.commandTimeout())
		defer cancel()
		out, err := env.SearchFiles(ctx, pattern, stringArg(args, "path", ""))
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "No matches found", nil
		}
		return strings.TrimRight(out, "\n"), nil
	})
}

func httpRequestHandler(opts CoreToolOptions) Handler {
	return HandlerFunc(func(args map[string]any) (string, error) {
		url := stringArg(args, "url", "")
		if url == "" {
			return "", fmt.Errorf("url must not be empty")
		}
		method := strings.ToUpper(stringArg(args, "method", "GET"))

		var body io.Reader
		if raw := stringArg(args, "body", ""); raw != "" {
			body = strings.NewReader(raw)
		}
		req, err := http.NewRequest(method, url, body)
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		if headers, ok := args["headers"].(map[string]any); ok {
			for k := range headers {
				req.Header.Set(k, stringArg(headers, k, ""))
			}
		}

		resp, err := opts.httpClient().Do(req)
		if err != nil {
			return "", fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		limit := opts.bodyLimit()
		data, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)+1))
		if err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}
		text := string(data)
		if len(data) > limit {
			text = text[:limit] + "..."
		}
		return fmt.Sprintf("HTTP %d\n%s", resp.StatusCode, text), nil
	})
}

// allowedGitOps guards against arbitrary command injection through the
// operation field; extra args still pass through the shell-quoted path.
var allowedGitOps = map[string]bool{
	"status": true, "diff": true, "log": true,
	"add": true, "commit": true, "branch": true,
}

func gitHandler(env Environment, opts CoreToolOptions) Handler {
	return HandlerFunc(func(args map[string]any) (string, error) {
		op := strings.TrimSpace(stringArg(args, "operation", ""))
		if !allowedGitOps[op] {
			return "", fmt.Errorf("unsupported git operation %q", op)
		}
		command := "git " + op
		switch op {
		case "commit":
			msg := stringArg(args, "args", "update")
			command = fmt.Sprintf("git commit -m %q", msg)
		case "log":
			command = "git log --oneline -10"
		default:
			if extra := strings.TrimSpace(stringArg(args, "args", "")); extra != "" {
				command += " " + extra
			}
		}
		res, err := env.ExecCommand(context.Background(), command, opts.commandTimeout())
		if err != nil {
			return "", err
		}
		return execToResult(res), nil
	})
}

func packagesHandler(env Environment, opts CoreToolOptions) Handler {
	return HandlerFunc(func(args map[string]any) (string, error) {
		action := strings.TrimSpace(stringArg(args, "action", ""))
		manager := strings.TrimSpace(stringArg(args, "manager", "pip"))
		pkg := strings.TrimSpace(stringArg(args, "package", ""))

		commands := map[string]map[string]string{
			"pip": {
				"install":   "pip install %s",
				"uninstall": "pip uninstall -y %s",
				"list":      "pip list",
			},
			"npm": {
				"install":   "npm install %s",
				"uninstall": "npm uninstall %s",
				"list":      "npm list --depth=0",
			},
			"go": {
				"install":   "go install %s",
				"uninstall": "go clean -i %s",
				"list":      "go list -m all",
			},
		}

		byAction, ok := commands[manager]
		if !ok {
			return "", fmt.Errorf("unsupported package manager %q", manager)
		}
		tmpl, ok := byAction[action]
		if !ok {
			return "", fmt.Errorf("unsupported action %q", action)
		}
		if action != "list" && pkg == "" {
			return "", fmt.Errorf("package must not be empty for %s", action)
		}

		command := tmpl
		if strings.Contains(tmpl, "%s") {
			command = fmt.Sprintf(tmpl, pkg)
		}
		res, err := env.ExecCommand(context.Background(), command, opts.commandTimeout())
		if err != nil {
			return "", err
		}
		return execToResult(res), nil
	})
}

func runTestsHandler(env Environment, opts CoreToolOptions) Handler {
	return HandlerFunc(func(args map[string]any) (string, error) {
		command := strings.TrimSpace(stringArg(args, "command", ""))
		if command == "" {
			command = detectTestCommand(env)
		}
		if path := strings.TrimSpace(stringArg(args, "path", "")); path != "" {
			command += " " + path
		}
		res, err := env.ExecCommand(context.Background(), command, opts.commandTimeout())
		if err != nil {
			return "", err
		}
		return execToResult(res), nil
	})
}

// detectTestCommand picks a test runner from project markers in the working
// directory.
func detectTestCommand(env Environment) string {
	switch {
	case env.FileExists("go.mod"):
		return "go test ./..."
	case env.FileExists("package.json"):
		return "npm test"
	case env.FileExists("Cargo.toml"):
		return "cargo test"
	case env.FileExists("pytest.ini"), env.FileExists("pyproject.toml"), env.FileExists("setup.py"):
		return "pytest"
	default:
		return "make test"
	}
}
