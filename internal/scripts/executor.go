// Package scripts runs the registered query routines against the programs
// attribute store. Each script name maps to one Go handler.
package scripts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/pysugar/loanpilot/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrEarlyExit ends a handler successfully before it completes.
	ErrEarlyExit = errors.New("script exited early")
	// ErrScriptNotFound is reported for names without a registered routine.
	ErrScriptNotFound = errors.New("script not found")
)

// Env is the execution environment handed to a handler.
type Env struct {
	DB     *gorm.DB
	DBPath string
	Out    io.Writer
}

// Printf writes formatted output to the result channel.
func (e *Env) Printf(format string, args ...any) {
	fmt.Fprintf(e.Out, format, args...)
}

// Println writes a line to the result channel.
func (e *Env) Println(args ...any) {
	fmt.Fprintln(e.Out, args...)
}

// Handler is one named query routine.
type Handler func(ctx context.Context, env *Env, params Params) error

// Outcome classifies how a script run ended.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeExited
	OutcomeFaulted
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeExited:
		return "exited"
	case OutcomeFaulted:
		return "faulted"
	case OutcomeNotFound:
		return "not_found"
	}
	return "unknown"
}

// Report describes one script run.
type Report struct {
	Script  string
	Outcome Outcome
	Err     error
}

// Success reports whether the run counts as successful: it completed or
// exited early.
func (r Report) Success() bool {
	return r.Outcome == OutcomeCompleted || r.Outcome == OutcomeExited
}

// Executor dispatches script names to handlers.
type Executor struct {
	db             *gorm.DB
	dbPath         string
	scratchpadPath string
	handlers       map[string]Handler
}

// Option configures an Executor.
type Option func(*Executor)

// WithHandler registers or replaces a handler.
func WithHandler(name string, h Handler) Option {
	return func(e *Executor) {
		e.handlers[name] = h
	}
}

// WithScratchpad mirrors every run's output to path.
func WithScratchpad(path string) Option {
	return func(e *Executor) {
		e.scratchpadPath = path
	}
}

// WithDBPath records the database path exposed to handlers.
func WithDBPath(path string) Option {
	return func(e *Executor) {
		e.dbPath = path
	}
}

// NewExecutor creates an Executor with the built-in handlers.
func NewExecutor(database *gorm.DB, opts ...Option) *Executor {
	e := &Executor{
		db: database,
		handlers: map[string]Handler{
			db.ScriptFindParam:        findParamAcrossPrograms,
			db.ScriptShowProgram:      showProgramParameters,
			db.ScriptMatchPrograms:    matchPrograms,
			db.ScriptServicerPrograms: showServicerPrograms,
			db.ScriptProgramParameter: getProgramParameter,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Names returns the names with a registered handler, sorted.
func (e *Executor) Names() []string {
	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the script registered under name and writes its output to
// out. Unknown names and handler faults are written to out as diagnostics
// and never returned as errors or panics.
func (e *Executor) Execute(ctx context.Context, name string, params Params, out io.Writer) Report {
	var buf bytes.Buffer
	report := e.run(ctx, name, params, &buf)

	if _, err := out.Write(buf.Bytes()); err != nil {
		log.Printf("⚠️ [Scripts] Failed to write result of %s: %v", name, err)
	}
	if e.scratchpadPath != "" {
		if err := os.WriteFile(e.scratchpadPath, buf.Bytes(), 0o644); err != nil {
			log.Printf("⚠️ [Scripts] Failed to write scratchpad %s: %v", e.scratchpadPath, err)
		}
	}
	return report
}

func (e *Executor) run(ctx context.Context, name string, params Params, out *bytes.Buffer) (report Report) {
	report.Script = name

	handler, ok := e.handlers[name]
	if ok && e.db != nil {
		if _, err := db.GetScript(e.db, name); err != nil {
			ok = false
		}
	}
	if !ok {
		fmt.Fprintf(out, "Error: Script '%s' not found in database\n", name)
		report.Outcome = OutcomeNotFound
		report.Err = fmt.Errorf("%w: %s", ErrScriptNotFound, name)
		return report
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			fmt.Fprintf(out, "Error executing script: %v\n", err)
			report.Outcome = OutcomeFaulted
			report.Err = err
		}
	}()

	if params == nil {
		params = Params{}
	}
	env := &Env{DB: e.db, DBPath: e.dbPath, Out: out}
	err := handler(ctx, env, params)
	switch {
	case err == nil:
		report.Outcome = OutcomeCompleted
	case errors.Is(err, ErrEarlyExit):
		report.Outcome = OutcomeExited
	default:
		fmt.Fprintf(out, "Error executing script: %v\n", err)
		report.Outcome = OutcomeFaulted
		report.Err = err
	}
	return report
}
