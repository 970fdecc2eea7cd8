package launch

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"sotugyo/internal/catalog"
	"sotugyo/internal/events"
	"sotugyo/pkg/logging"
)

// CatalogSource resolves package references. *catalog.Catalog and
// *catalog.Store both satisfy it.
type CatalogSource interface {
	Lookup(name, version string) (*catalog.Package, bool)
}

// Request describes one tool launch.
type Request struct {
	Name    string
	Version string // empty selects the highest version
	Args    []string

	// WorkDir overrides the working directory. When empty, ProjectRoot is
	// used, then the package root.
	WorkDir     string
	ProjectRoot string

	// Env entries are applied last and override everything else.
	Env map[string]string
}

// DiagnosticKind classifies a non-fatal launch problem.
type DiagnosticKind string

// DiagnosticLoggingDegraded means the tool started but its output is not
// being captured.
const DiagnosticLoggingDegraded DiagnosticKind = "LoggingDegraded"

// Diagnostic is a non-fatal problem attached to an Outcome.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind" yaml:"kind"`
	Message string         `json:"message" yaml:"message"`
}

// Outcome reports a launch attempt. It is returned as soon as the spawn
// call returns; the child's exit is never observed.
type Outcome struct {
	Started    bool        `json:"started" yaml:"started"`
	PID        int         `json:"pid,omitempty" yaml:"pid,omitempty"`
	Package    string      `json:"package" yaml:"package"`
	LogPath    string      `json:"logPath,omitempty" yaml:"logPath,omitempty"`
	Command    []string    `json:"command" yaml:"command"`
	WorkDir    string      `json:"workDir" yaml:"workDir"`
	StartedAt  time.Time   `json:"startedAt" yaml:"startedAt"`
	Diagnostic *Diagnostic `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty"`
}

// Coordinator resolves launch requests against a catalog and spawns
// detached processes with their output captured in per-launch log files.
type Coordinator struct {
	source    CatalogSource
	logDir    string
	roots     func() []string
	publisher events.Publisher
	environ   func() []string
	now       func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPublisher sets where launch-outcome events go.
func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithPackageRoots sets the repository roots exported to the child in
// REZ_PACKAGES_PATH.
func WithPackageRoots(roots func() []string) Option {
	return func(c *Coordinator) { c.roots = roots }
}

// WithEnviron replaces os.Environ as the base child environment.
func WithEnviron(environ func() []string) Option {
	return func(c *Coordinator) { c.environ = environ }
}

// WithClock sets the clock used for log names.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a coordinator writing logs under logDir.
func NewCoordinator(source CatalogSource, logDir string, opts ...Option) *Coordinator {
	c := &Coordinator{
		source:    source,
		logDir:    logDir,
		roots:     func() []string { return nil },
		publisher: events.NopPublisher{},
		environ:   os.Environ,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LogDir returns the directory launch logs are written to.
func (c *Coordinator) LogDir() string {
	return c.logDir
}

// Resolve looks up the package for req and verifies its executable still
// exists. It touches nothing on disk.
func (c *Coordinator) Resolve(req Request) (*catalog.Package, error) {
	pkg, ok := c.source.Lookup(req.Name, req.Version)
	if !ok {
		return nil, &PackageNotFoundError{Name: req.Name, Version: req.Version}
	}
	if pkg.Unresolved {
		return nil, &ExecutableUnresolvedError{Name: pkg.Name, Version: pkg.Version, Descriptor: pkg.Descriptor}
	}
	info, err := os.Stat(pkg.Executable)
	if err != nil || !info.Mode().IsRegular() {
		return nil, &PackageNotFoundError{
			Name:    pkg.Name,
			Version: pkg.Version,
			Reason:  fmt.Sprintf("executable %s no longer exists", pkg.Executable),
		}
	}
	return pkg, nil
}

// Launch starts the requested tool as a detached process and returns once
// the process has been spawned.
//
// Resolution failures return an error before anything is written. If the
// log file cannot be created the tool is still started, with its output
// discarded, and the outcome carries a LoggingDegraded diagnostic.
// Cancelling ctx before the spawn prevents it; after the spawn it has no
// effect.
func (c *Coordinator) Launch(ctx context.Context, req Request) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	pkg, err := c.Resolve(req)
	if err != nil {
		c.emitFailure(req, err)
		return Outcome{}, err
	}

	now := c.now()
	outcome := Outcome{
		Package:   pkg.Ref(),
		Command:   append([]string{pkg.Executable}, req.Args...),
		WorkDir:   firstNonEmpty(req.WorkDir, req.ProjectRoot, pkg.Root),
		StartedAt: now,
	}

	cmd := exec.Command(outcome.Command[0], outcome.Command[1:]...)
	cmd.Dir = outcome.WorkDir
	cmd.Env = buildEnv(c.environ(), pkg, c.roots(), req.ProjectRoot, req.Env)
	detach(cmd)

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	logFile, logPath, logErr := createLogFile(c.logDir, LogName(pkg.Name, pkg.Version, now))
	if logErr != nil {
		logging.Warn("Launch", "Launching %s without a log: %v", pkg.Ref(), logErr)
		outcome.Diagnostic = &Diagnostic{Kind: DiagnosticLoggingDegraded, Message: logErr.Error()}
	} else {
		outcome.LogPath = logPath
		writeLogHeader(logFile, outcome)
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	startErr := cmd.Start()
	if logFile != nil {
		if startErr != nil {
			fmt.Fprintf(logFile, "# failed to start: %v\n", startErr)
		}
		// The child holds its own descriptor.
		_ = logFile.Close()
	}
	if startErr != nil {
		err := &SpawnError{Command: outcome.Command, Err: startErr}
		logging.Error("Launch", startErr, "Failed to start %s", pkg.Ref())
		c.emitFailure(req, err)
		return outcome, err
	}

	outcome.Started = true
	outcome.PID = cmd.Process.Pid

	// Reap the child so it does not linger as a zombie. Its exit status is
	// deliberately ignored.
	go func() {
		_ = cmd.Wait()
	}()

	logging.Info("Launch", "Started %s (pid %d) in %s", pkg.Ref(), outcome.PID, outcome.WorkDir)
	c.emitSuccess(pkg, outcome)
	return outcome, nil
}

func writeLogHeader(w io.Writer, o Outcome) {
	fmt.Fprintf(w, "# %s launching %s\n# command: %s\n# workdir: %s\n",
		o.StartedAt.Format(time.RFC3339), o.Package, strings.Join(o.Command, " "), o.WorkDir)
}

func (c *Coordinator) emitSuccess(pkg *catalog.Package, o Outcome) {
	data := events.EventData{Name: pkg.Name, Version: pkg.Version, PID: o.PID, Path: o.LogPath}
	reason := events.ReasonLaunchStarted
	if o.Diagnostic != nil {
		reason = events.ReasonLaunchDegraded
		data.Error = o.Diagnostic.Message
	}
	c.publisher.Emit(events.KindLaunchOutcome, reason, data, o)
}

func (c *Coordinator) emitFailure(req Request, err error) {
	c.publisher.Emit(events.KindLaunchOutcome, events.ReasonLaunchFailed,
		events.EventData{Name: req.Name, Version: req.Version, Error: err.Error()}, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
