// Package modal runs agent commands inside a Modal sandbox.
package modal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modal-labs/libmodal/modal-go"
	"golang.org/x/sync/errgroup"

	"github.com/spachava753/coderun/internal/models"
	"github.com/spachava753/coderun/internal/util"
)

const (
	DefaultCwd              = "/"
	DefaultTimeout          = 30 * time.Second
	DefaultContainerTimeout = 2 * time.Hour
	DefaultMemoryMiB        = 2048
)

// ProviderConfig holds Modal-specific settings read from provider_config.
type ProviderConfig struct {
	// AppName is the Modal app to create sandboxes in. If empty, a unique
	// app is created and stopped again on cleanup.
	AppName string
	Regions []string
	Verbose bool
}

// ParseProviderConfig extracts Modal-specific config from the generic config map.
func ParseProviderConfig(config map[string]any) ProviderConfig {
	pc := ProviderConfig{}
	if config == nil {
		return pc
	}
	if v, ok := config["app_name"].(string); ok {
		pc.AppName = v
	}
	if v, ok := config["region"].(string); ok {
		pc.Regions = []string{v}
	}
	if v, ok := config["regions"].([]any); ok {
		for _, r := range v {
			if s, ok := r.(string); ok {
				pc.Regions = append(pc.Regions, s)
			}
		}
	}
	if v, ok := config["verbose"].(bool); ok {
		pc.Verbose = v
	}
	return pc
}

// MinImageBuilderVersion is the minimum Modal image builder version needed for
// WORKDIR and other Dockerfile instructions.
const MinImageBuilderVersion = "2025.06"

// ConfigReader reads Modal configuration.
type ConfigReader interface {
	ReadConfig() ([]byte, error)
}

type cliConfigReader struct{}

func (c *cliConfigReader) ReadConfig() ([]byte, error) {
	modalPath, err := exec.LookPath("modal")
	if err != nil {
		return nil, fmt.Errorf("modal CLI not found: %w", err)
	}
	return exec.Command(modalPath, "config", "show").Output()
}

var defaultConfigReader ConfigReader = &cliConfigReader{}

func checkImageBuilderVersion(reader ConfigReader) error {
	output, err := reader.ReadConfig()
	if err != nil {
		return fmt.Errorf("failed to get modal config: %w", err)
	}

	var config struct {
		ImageBuilderVersion *string `json:"image_builder_version"`
	}
	if err := json.Unmarshal(output, &config); err != nil {
		return fmt.Errorf("failed to parse modal config: %w", err)
	}

	if config.ImageBuilderVersion == nil || *config.ImageBuilderVersion == "" {
		return fmt.Errorf("modal image_builder_version is not set; "+
			"dockerfile support requires version %s or later. "+
			"Run: modal config set image_builder_version %s",
			MinImageBuilderVersion, MinImageBuilderVersion)
	}

	if *config.ImageBuilderVersion < MinImageBuilderVersion {
		return fmt.Errorf("modal image_builder_version %q is too old; "+
			"dockerfile support requires version %s or later. "+
			"Run: modal config set image_builder_version %s",
			*config.ImageBuilderVersion, MinImageBuilderVersion, MinImageBuilderVersion)
	}

	slog.Debug("modal image builder version check passed", "version", *config.ImageBuilderVersion)
	return nil
}

// Environment is a running Modal sandbox.
type Environment struct {
	cfg       models.EnvironmentConfig
	provider  ProviderConfig
	sandbox   *modal.Sandbox
	appName   string
	ownsApp   bool
	startTime time.Time
	cpuCount  float64
	memoryMiB int
}

// New creates a sandbox from cfg.Image, or from cfg.Dockerfile when set.
func New(ctx context.Context, cfg models.EnvironmentConfig) (*Environment, error) {
	if cfg.Cwd == "" {
		cfg.Cwd = DefaultCwd
	}
	e := &Environment{
		cfg:      cfg,
		provider: ParseProviderConfig(cfg.ProviderConfig),
		cpuCount: cfg.CPUs,
	}
	if e.cpuCount <= 0 {
		e.cpuCount = 1
	}

	memoryMiB, err := util.ParseMemory(cfg.Memory)
	if err != nil {
		return nil, fmt.Errorf("parsing memory: %w", err)
	}
	e.memoryMiB = memoryMiB
	if e.memoryMiB <= 0 {
		e.memoryMiB = DefaultMemoryMiB
	}

	lifetime := DefaultContainerTimeout
	if cfg.ContainerTimeout != "" {
		if lifetime, err = time.ParseDuration(cfg.ContainerTimeout); err != nil {
			return nil, fmt.Errorf("parsing container_timeout: %w", err)
		}
	}

	if cfg.Dockerfile == "" && cfg.Image == "" {
		return nil, fmt.Errorf("modal environment requires an image or a dockerfile")
	}

	var dockerfileCommands []string
	baseImage := cfg.Image
	if cfg.Dockerfile != "" {
		if err := checkImageBuilderVersion(defaultConfigReader); err != nil {
			return nil, err
		}
		content, err := os.ReadFile(cfg.Dockerfile)
		if err != nil {
			return nil, fmt.Errorf("reading Dockerfile: %w", err)
		}
		if baseImage, dockerfileCommands, err = parseDockerfile(string(content)); err != nil {
			return nil, fmt.Errorf("parsing Dockerfile: %w", err)
		}
	}

	slog.Debug("initializing modal client")
	client, err := modal.NewClient()
	if err != nil {
		return nil, fmt.Errorf("creating modal client: %w", err)
	}

	e.appName = e.provider.AppName
	if e.appName == "" {
		e.appName = "coderun-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		e.ownsApp = true
	}
	app, err := client.Apps.FromName(ctx, e.appName, &modal.AppFromNameParams{
		CreateIfMissing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating modal app: %w", err)
	}

	image := client.Images.FromRegistry(baseImage, nil)
	if len(dockerfileCommands) > 0 {
		slog.Debug("building modal image", "base_image", baseImage, "commands", len(dockerfileCommands))
		image, err = image.DockerfileCommands(dockerfileCommands, nil).Build(ctx, app)
		if err != nil {
			return nil, fmt.Errorf("building image: %w", err)
		}
	}

	slog.Debug("creating modal sandbox",
		"app", e.appName,
		"cpus", e.cpuCount,
		"memory_mib", e.memoryMiB,
		"regions", e.provider.Regions)

	e.sandbox, err = client.Sandboxes.Create(ctx, app, image, &modal.SandboxCreateParams{
		CPU:       e.cpuCount,
		MemoryMiB: e.memoryMiB,
		Env:       cfg.Env,
		Timeout:   lifetime,
		Verbose:   e.provider.Verbose,
		Regions:   e.provider.Regions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating modal sandbox: %w", err)
	}
	e.startTime = time.Now()

	slog.Info("started modal sandbox", "sandbox_id", e.sandbox.SandboxID, "app", e.appName)
	return e, nil
}

// parseDockerfile extracts the base image and build commands from a
// Dockerfile. Modal builds have no local build context, so COPY and ADD are
// rejected.
func parseDockerfile(content string) (baseImage string, commands []string, err error) {
	var currentCmd strings.Builder
	inContinuation := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if inContinuation {
			currentCmd.WriteString(" ")
			if strings.HasSuffix(trimmed, "\\") {
				currentCmd.WriteString(strings.TrimSuffix(trimmed, "\\"))
			} else {
				currentCmd.WriteString(trimmed)
				commands = append(commands, currentCmd.String())
				currentCmd.Reset()
				inContinuation = false
			}
			continue
		}

		instruction, _, _ := strings.Cut(strings.ToUpper(trimmed), " ")
		switch instruction {
		case "FROM":
			// Later stages replace earlier ones.
			if parts := strings.Fields(trimmed); len(parts) >= 2 {
				baseImage = parts[1]
			}
			commands = nil
			continue
		case "COPY", "ADD":
			return "", nil, fmt.Errorf("COPY and ADD instructions are not supported: %s", trimmed)
		case "RUN", "WORKDIR", "ENV", "USER", "EXPOSE", "LABEL", "SHELL", "ARG":
		default:
			slog.Debug("skipping unsupported dockerfile instruction", "instruction", instruction)
			continue
		}

		if strings.HasSuffix(trimmed, "\\") {
			currentCmd.WriteString(strings.TrimSuffix(trimmed, "\\"))
			inContinuation = true
		} else {
			commands = append(commands, trimmed)
		}
	}

	if baseImage == "" {
		return "", nil, fmt.Errorf("no FROM instruction found in Dockerfile")
	}
	return baseImage, commands, nil
}

func (e *Environment) Config() any { return e.cfg }

func (e *Environment) TemplateVars() map[string]any {
	vars := models.Vars(e.cfg)
	if e.sandbox != nil {
		vars["sandbox_id"] = e.sandbox.SandboxID
	}
	return vars
}

// syncBuffer interleaves stdout and stderr as they are drained.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Execute runs command in the sandbox. Forwarded host variables are sent with
// the exec; configured variables were set when the sandbox was created.
func (e *Environment) Execute(ctx context.Context, command, cwd string) (models.ExecResult, error) {
	if cwd == "" {
		cwd = e.cfg.Cwd
	}

	timeout := DefaultTimeout
	if e.cfg.TimeoutSec > 0 {
		timeout = time.Duration(e.cfg.TimeoutSec * float64(time.Second))
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	env := map[string]string{}
	for _, key := range e.cfg.ForwardEnv {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}

	cmdPreview := command
	if len(cmdPreview) > 100 {
		cmdPreview = cmdPreview[:100] + "..."
	}
	slog.Debug("executing command in modal sandbox",
		"sandbox_id", e.sandbox.SandboxID,
		"command", cmdPreview,
		"timeout", timeout)

	process, err := e.sandbox.Exec(execCtx, []string{"bash", "-lc", command}, &modal.SandboxExecParams{
		Env:     env,
		Workdir: cwd,
		Timeout: time.Duration(math.Ceil(timeout.Seconds())) * time.Second,
	})
	if err != nil {
		return models.ExecResult{}, e.execError(ctx, execCtx, command, "", err)
	}

	var output syncBuffer
	g := new(errgroup.Group)
	g.Go(func() error {
		_, err := io.Copy(&output, process.Stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&output, process.Stderr)
		return err
	})
	drainErr := g.Wait()

	exitCode, err := process.Wait(execCtx)
	if err != nil {
		return models.ExecResult{}, e.execError(ctx, execCtx, command, output.String(), err)
	}
	if drainErr != nil {
		return models.ExecResult{}, fmt.Errorf("reading command output: %w", drainErr)
	}

	return models.ExecResult{Output: output.String(), ReturnCode: exitCode}, nil
}

func (e *Environment) execError(ctx, execCtx context.Context, command, output string, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		return &models.TimeoutError{Command: command, Output: output}
	}
	return fmt.Errorf("executing command: %w", err)
}

// Cost estimates the compute spend of the sandbox so far.
// Modal pricing (approximate):
// - CPU: ~$0.000463 per CPU-second
// - Memory: ~$0.000058 per GiB-second
func (e *Environment) Cost() float64 {
	if e.startTime.IsZero() {
		return 0
	}
	duration := time.Since(e.startTime).Seconds()
	cpuCost := duration * e.cpuCount * 0.000463
	memoryCost := duration * (float64(e.memoryMiB) / 1024.0) * 0.000058
	return cpuCost + memoryCost
}

// Cleanup terminates the sandbox, and stops the app when it was created for
// this run.
func (e *Environment) Cleanup(ctx context.Context) error {
	if e.sandbox == nil {
		return nil
	}
	slog.Debug("terminating modal sandbox", "sandbox_id", e.sandbox.SandboxID, "app", e.appName)

	if err := e.sandbox.Terminate(ctx); err != nil {
		if !strings.Contains(err.Error(), "already terminated") &&
			!strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("terminating sandbox: %w", err)
		}
	}

	if e.ownsApp {
		if err := stopApp(ctx, e.appName); err != nil {
			return fmt.Errorf("stopping app: %w", err)
		}
	}

	slog.Info("modal sandbox terminated",
		"sandbox_id", e.sandbox.SandboxID,
		"estimated_cost_usd", fmt.Sprintf("%.4f", e.Cost()))
	return nil
}

// stopApp stops a Modal app with the CLI; modal-go does not expose AppStop.
func stopApp(ctx context.Context, appName string) error {
	modalPath, err := exec.LookPath("modal")
	if err != nil {
		return fmt.Errorf("modal CLI not found: the modal-go SDK does not expose the AppStop API, " +
			"so the CLI is required to clean up apps. Install it with: pip install modal")
	}

	output, err := exec.CommandContext(ctx, modalPath, "app", "stop", appName).CombinedOutput()
	if err != nil {
		outStr := string(output)
		if strings.Contains(outStr, "already stopped") ||
			strings.Contains(outStr, "not found") ||
			strings.Contains(outStr, "Could not find") {
			return nil
		}
		return fmt.Errorf("modal app stop failed: %s", outStr)
	}
	return nil
}
