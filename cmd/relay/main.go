package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/taskrelay/relay/internal/events"
	"github.com/taskrelay/relay/internal/fsio"
	"github.com/taskrelay/relay/internal/logging"
	"github.com/taskrelay/relay/internal/model"
	"github.com/taskrelay/relay/internal/processor"
	"github.com/taskrelay/relay/internal/reconcile"
	"github.com/taskrelay/relay/internal/record"
	"github.com/taskrelay/relay/internal/setup"
	"github.com/taskrelay/relay/internal/state"
	"github.com/taskrelay/relay/internal/status"
	"github.com/taskrelay/relay/internal/validate"
	"github.com/taskrelay/relay/internal/watcher"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "setup":
		runSetup(os.Args[2:])
	case "add":
		runAdd(os.Args[2:])
	case "new":
		runNew(os.Args[2:])
	case "next":
		runNext(os.Args[2:])
	case "start":
		runStart(os.Args[2:])
	case "complete":
		runComplete(os.Args[2:])
	case "fail":
		runFail(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "reconcile":
		runReconcile(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "version":
		fmt.Printf("relay %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `usage: relay <command> [options]

commands:
  setup       initialize the .relay directory tree
  add         enqueue a task file into the pending area
  new         scaffold a task file with the next free ID
  next        show the highest-priority pending task
  start       move a pending task into processing
  complete    finish a processing task with a COMPLETE result
  fail        finish a processing task with a FAILED result
  watch       poll the output area and resolve processing tasks
  reconcile   rebuild the index from directory contents
  validate    structurally check a task or result file
  status      show queue depth from the index
  version     print version
`)
}

// env ties together the collaborators every lifecycle command needs.
type env struct {
	cfg    model.Config
	paths  model.Paths
	store  *state.Store
	events *events.Logger
	log    *logging.Logger
	retry  fsio.RetryPolicy
}

func newEnv(relayDir string) (*env, error) {
	cfg, err := model.LoadConfig(relayDir)
	if err != nil {
		return nil, err
	}
	paths := cfg.Paths(relayDir)

	lg := logging.New(os.Stderr, logging.ParseLevel(cfg.Logging.Level), "relay")
	ev, err := events.NewLogger(paths.EventLog, 0)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:    cfg,
		paths:  paths,
		store:  state.NewStore(paths.Index),
		events: ev,
		log:    lg,
		retry: fsio.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Delay:       time.Duration(cfg.Retry.DelayMs) * time.Millisecond,
		},
	}, nil
}

func (e *env) close() {
	e.events.Close()
}

func (e *env) processor() *processor.Processor {
	return processor.New(e.paths, e.store, e.events, e.retry, e.log)
}

func (e *env) watcher() *watcher.Watcher {
	return watcher.New(e.paths, e.store, e.events, e.retry, e.log)
}

func dirFlag(fs *flag.FlagSet) *string {
	return fs.String("dir", model.RelayDirName, "relay directory")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "relay: %v\n", err)
	os.Exit(1)
}

func runSetup(args []string) {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	project := fs.String("project", ".", "project directory")
	name := fs.String("name", "", "project name (defaults to directory basename)")
	fs.Parse(args)

	if err := setup.Run(*project, *name); err != nil {
		fatal(err)
	}
	fmt.Println("relay directory initialized")
}

func runAdd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	dir := dirFlag(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal(fmt.Errorf("usage: relay add <task-file>"))
	}
	text, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fatal(err)
	}

	e, err := newEnv(*dir)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	id, err := e.processor().Enqueue(string(text))
	if err != nil {
		fatal(err)
	}
	fmt.Println(id)
}

func runNew(args []string) {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	dir := dirFlag(fs)
	mode := fs.String("mode", string(model.ModeBalanced), "mode")
	taskType := fs.String("type", string(model.TaskTypeAnalysis), "task type")
	priority := fs.String("priority", string(model.PriorityMedium), "priority")
	outputFormat := fs.String("format", string(model.OutputFormatMarkdown), "output format")
	parent := fs.String("parent", "", "parent task ID")
	fs.Parse(args)

	e, err := newEnv(*dir)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	id, err := model.NextTaskID(time.Now(),
		e.paths.Pending, e.paths.Processing, e.paths.Archive)
	if err != nil {
		fatal(err)
	}

	task := model.TaskRecord{
		TaskID:          id,
		Mode:            model.Mode(strings.ToUpper(*mode)),
		TaskType:        model.TaskType(strings.ToUpper(*taskType)),
		Priority:        model.Priority(strings.ToUpper(*priority)),
		OutputFormat:    model.OutputFormat(strings.ToUpper(*outputFormat)),
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
		ParentTask:      *parent,
		Context:         "TODO",
		Constraints:     "TODO",
		Deliverable:     "TODO",
		SuccessCriteria: "TODO",
	}
	os.Stdout.Write(record.WriteTask(task))
}

func runNext(args []string) {
	fs := flag.NewFlagSet("next", flag.ExitOnError)
	dir := dirFlag(fs)
	fs.Parse(args)

	e, err := newEnv(*dir)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	task, err := e.processor().PickNextTask()
	if err != nil {
		fatal(err)
	}
	if task == nil {
		fmt.Println("no pending tasks")
		return
	}
	fmt.Printf("%s priority=%s type=%s\n", task.TaskID, task.Priority, task.TaskType)
}

func runStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	dir := dirFlag(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal(fmt.Errorf("usage: relay start <task-id>"))
	}

	e, err := newEnv(*dir)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	if err := e.processor().StartProcessing(fs.Arg(0)); err != nil {
		fatal(err)
	}
	fmt.Printf("%s processing\n", fs.Arg(0))
}

func runComplete(args []string) {
	fs := flag.NewFlagSet("complete", flag.ExitOnError)
	dir := dirFlag(fs)
	outputFile := fs.String("output", "", "file holding the result output (stdin if omitted)")
	quality := fs.String("quality", string(model.QualityMedium), "quality level")
	assumptions := fs.String("assumptions", "", "meta: assumptions")
	risks := fs.String("risks", "", "meta: risks")
	followups := fs.String("followups", "", "meta: suggested followups")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal(fmt.Errorf("usage: relay complete <task-id> [options]"))
	}

	output, err := readBody(*outputFile)
	if err != nil {
		fatal(err)
	}

	e, err := newEnv(*dir)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	meta := model.ResultMeta{
		Assumptions:        *assumptions,
		Risks:              *risks,
		SuggestedFollowups: *followups,
	}
	id := fs.Arg(0)
	if err := e.processor().Complete(id, output, model.QualityLevel(strings.ToUpper(*quality)), meta); err != nil {
		fatal(err)
	}
	fmt.Printf("%s completed\n", id)
}

func runFail(args []string) {
	fs := flag.NewFlagSet("fail", flag.ExitOnError)
	dir := dirFlag(fs)
	reason := fs.String("reason", "", "failure reason (required)")
	fs.Parse(args)

	if fs.NArg() < 1 || *reason == "" {
		fatal(fmt.Errorf("usage: relay fail <task-id> -reason <text>"))
	}

	e, err := newEnv(*dir)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	id := fs.Arg(0)
	if err := e.processor().Fail(id, *reason, model.ResultMeta{}); err != nil {
		fatal(err)
	}
	fmt.Printf("%s failed\n", id)
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	dir := dirFlag(fs)
	once := fs.Bool("once", false, "run a single poll cycle and exit")
	daemon := fs.Bool("daemon", false, "run with fsnotify and a file lock")
	cycles := fs.Int("cycles", -1, "poll cycles before exiting (0 = forever)")
	fs.Parse(args)

	e, err := newEnv(*dir)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	w := e.watcher()

	if *once {
		resolved, err := w.PollOnce()
		if err != nil {
			fatal(err)
		}
		for _, r := range resolved {
			fmt.Printf("%s %s\n", r.TaskID, r.Outcome)
		}
		return
	}

	if *daemon {
		d := watcher.NewDaemon(e.cfg, e.paths, w, e.log)
		if err := d.Run(); err != nil {
			fatal(err)
		}
		return
	}

	maxCycles := e.cfg.Watcher.MaxCycles
	if *cycles >= 0 {
		maxCycles = *cycles
	}
	interval := time.Duration(e.cfg.Watcher.PollIntervalSec) * time.Second
	if err := w.PollLoop(interval, maxCycles); err != nil {
		fatal(err)
	}
}

func runReconcile(args []string) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	dir := dirFlag(fs)
	fs.Parse(args)

	e, err := newEnv(*dir)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	// A present-but-corrupt index is quarantined before the rebuild
	// replaces it, so the bad copy stays inspectable.
	if _, err := e.store.Load(); err != nil {
		if _, statErr := os.Stat(e.paths.Index); statErr == nil {
			if qPath, qErr := fsio.Quarantine(e.paths.Quarantine, e.paths.Index); qErr == nil {
				e.log.Warnf("quarantined corrupt index: %s", qPath)
			}
		}
	}

	s := reconcile.New(e.paths, e.store, e.log).Rebuild()
	counts := s.Counts()
	fmt.Printf("rebuilt: pending=%d processing=%d completed=%d failed=%d\n",
		counts[state.ListPending], counts[state.ListProcessing],
		counts[state.ListCompleted], counts[state.ListFailed])
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	kind := fs.String("kind", "task", "record kind: task or result")
	key := fs.String("key", "", "storage key for task_id consistency (defaults to filename stem)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal(fmt.Errorf("usage: relay validate [-kind task|result] <file>"))
	}
	path := fs.Arg(0)
	text, err := os.ReadFile(path)
	if err != nil {
		fatal(err)
	}

	var findings []validate.Finding
	switch *kind {
	case "task":
		storageKey := *key
		if storageKey == "" {
			storageKey = strings.TrimSuffix(filepath.Base(path), ".md")
		}
		findings = validate.ValidateTask(string(text), storageKey)
	case "result":
		findings = validate.ValidateResult(string(text))
	default:
		fatal(fmt.Errorf("unknown kind %q", *kind))
	}

	if len(findings) == 0 {
		fmt.Println("valid")
		return
	}
	for _, f := range findings {
		fmt.Printf("%s %s: %s\n", f.Severity, f.Field, f.Message)
	}
	os.Exit(1)
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	dir := dirFlag(fs)
	jsonOut := fs.Bool("json", false, "JSON output")
	fs.Parse(args)

	e, err := newEnv(*dir)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	if err := status.Run(e.store, os.Stdout, *jsonOut); err != nil {
		fatal(err)
	}
}

func readBody(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
