package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"clipflow"
	"clipflow/internal/api/models"
	"clipflow/internal/api/repo"
	"clipflow/internal/api/service"
	"clipflow/internal/engine"
	"clipflow/internal/engine/credit"
	"clipflow/internal/engine/graph"
	"clipflow/internal/engine/jobs"
	"clipflow/internal/engine/modelapi"
	"clipflow/internal/engine/node"
	"clipflow/internal/engine/stream"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const cliUser = "cli"

type runOptions struct {
	inputs    map[string]string
	inputFile string
	targets   []string
	credits   int64
	verbose   bool
}

// SetupCLI adds the workflow commands to rootCmd. Every command works on a workflow file in the
// editor's JSON format, either a saved workflow or a bare {"nodes", "edges"} graph, and runs
// without a database.
func SetupCLI(rootCmd *cobra.Command) {
	opts := &runOptions{}

	validateCmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a workflow graph against input data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := loadWorkflow(args[0])
			if err != nil {
				return err
			}
			snapshot, err := opts.snapshot()
			if err != nil {
				return err
			}
			e := newEngine(opts, nil)
			defer e.Stop()
			return validateWorkflow(cmd.OutOrStdout(), e, wf, snapshot, opts.targets)
		},
	}

	runCmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Execute a workflow and stream its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := loadWorkflow(args[0])
			if err != nil {
				return err
			}
			snapshot, err := opts.snapshot()
			if err != nil {
				return err
			}
			client := modelapi.NewClient(
				clipflow.GetEnv("MODEL_API_URL", "https://api.replicate.com/v1"),
				os.Getenv("MODEL_API_TOKEN"),
				modelapi.WithLogger(opts.logger()),
			)
			e := newEngine(opts, client)
			defer e.Stop()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWorkflow(ctx, cmd.OutOrStdout(), e, wf, snapshot, opts.targets)
		},
	}

	nodeTypesCmd := &cobra.Command{
		Use:   "node-types",
		Short: "List the node kinds and their ports",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			listNodeTypes(cmd.OutOrStdout(), node.NewRegistry(node.Deps{}))
		},
	}

	var category string
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List the model catalog with credit costs",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			listModels(cmd.OutOrStdout(), modelapi.NewCatalog(modelapi.DefaultCost), category)
		},
	}
	modelsCmd.Flags().StringVar(&category, "category", "", "only list models of this category")

	for _, c := range []*cobra.Command{validateCmd, runCmd} {
		c.Flags().StringToStringVarP(&opts.inputs, "input", "i", nil, "input value as key=value, repeatable")
		c.Flags().StringVar(&opts.inputFile, "input-file", "", "JSON object with the input data")
		c.Flags().StringSliceVarP(&opts.targets, "target", "t", nil, "only run what these nodes need")
	}
	runCmd.Flags().Int64Var(&opts.credits, "credits", credit.DefaultStartingBalance, "credit balance of the run")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log engine activity")

	rootCmd.AddCommand(validateCmd, runCmd, nodeTypesCmd, modelsCmd)
}

func (o *runOptions) logger() zerolog.Logger {
	if o.verbose {
		return clipflow.NewLogger().Level(zerolog.DebugLevel)
	}
	return clipflow.NewLogger().Level(zerolog.WarnLevel)
}

// snapshot merges the input file with the --input flags, flags win.
func (o *runOptions) snapshot() (map[string]any, error) {
	snapshot := map[string]any{}
	if o.inputFile != "" {
		raw, err := os.ReadFile(o.inputFile)
		if err != nil {
			return nil, fmt.Errorf("read input file: %w", err)
		}
		if err := json.Unmarshal(raw, &snapshot); err != nil {
			return nil, fmt.Errorf("parse input file: %w", err)
		}
	}
	for k, v := range o.inputs {
		snapshot[k] = v
	}
	return snapshot, nil
}

func newEngine(o *runOptions, client *modelapi.Client) *service.Engine {
	engineOpts := service.EngineOptions{
		Ledger: credit.NewMemoryLedger(o.credits),
		Jobs:   jobs.DefaultConfig(),
		Logger: o.logger(),
	}
	if client != nil {
		engineOpts.Models = client
		engineOpts.JobProvider = modelapi.JobProvider{Client: client}
	}
	return service.NewEngine(engineOpts)
}

func loadWorkflow(path string) (models.Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.Workflow{}, fmt.Errorf("read workflow: %w", err)
	}
	var wf models.Workflow
	if err := json.Unmarshal(raw, &wf); err != nil {
		return models.Workflow{}, fmt.Errorf("parse workflow: %w", err)
	}
	if len(wf.Graph.Nodes) == 0 {
		if err := json.Unmarshal(raw, &wf.Graph); err != nil {
			return models.Workflow{}, fmt.Errorf("parse workflow graph: %w", err)
		}
	}
	if len(wf.Graph.Nodes) == 0 {
		return models.Workflow{}, errors.New("workflow has no nodes")
	}
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	wf.UserID = cliUser
	return wf, nil
}

func validateWorkflow(out io.Writer, e *service.Engine, wf models.Workflow, snapshot map[string]any, targets []string) error {
	g, built, err := e.Registry.Compile(wf.Graph.Spec(snapshot, targets))
	if err != nil {
		var verr *graph.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(out, "invalid: %s\n", verr.Error())
		}
		return err
	}
	var cost int64
	for _, b := range built {
		cost += b.Cost
	}
	fmt.Fprintf(out, "valid: %d nodes, %d outputs, %d credits\n", g.Len(), len(g.Terminals()), cost)
	return nil
}

func runWorkflow(ctx context.Context, out io.Writer, e *service.Engine, wf models.Workflow, snapshot map[string]any, targets []string) error {
	svc := service.NewExecutionServiceWith(e, repo.NewMemoryWorkflowRepository(wf))
	rec, err := svc.Execute(ctx, service.ExecuteInput{
		WorkflowID:    wf.ID,
		UserID:        cliUser,
		InputData:     snapshot,
		TargetNodeIDs: targets,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "execution %s started\n", rec.ID)

	w, err := svc.Subscribe(ctx, rec.ID, cliUser)
	if err != nil {
		return err
	}
	if w.Sub != nil {
		if err := follow(ctx, out, svc, w.Sub, rec.ID); err != nil {
			return err
		}
	}

	rec, err = e.Store.Get(context.Background(), rec.ID)
	if err != nil {
		return err
	}
	return report(out, rec)
}

// follow prints events until the execution ends. An interrupt cancels the execution and keeps
// following so the cancellation is reported.
func follow(ctx context.Context, out io.Writer, svc *service.ExecutionService, sub *stream.Subscription, id string) error {
	defer sub.Close()
	done := ctx.Done()
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				if errors.Is(sub.Err(), stream.ErrSlowSubscriber) {
					return sub.Err()
				}
				return nil
			}
			printEvent(out, ev)
		case <-done:
			done = nil
			if err := svc.Cancel(context.Background(), id, cliUser); err != nil && !errors.Is(err, service.ErrNotCancellable) {
				return err
			}
		}
	}
}

func printEvent(out io.Writer, ev engine.Event) {
	switch ev.Type {
	case engine.EventNode:
		line := fmt.Sprintf("[%d] %s %s", ev.Seq, ev.NodeID, ev.Status)
		if ev.Error != nil {
			line += fmt.Sprintf(": [%s] %s", ev.Error.Code, ev.Error.Message)
		}
		fmt.Fprintln(out, line)
	case engine.EventExecution:
		fmt.Fprintf(out, "[%d] execution %s\n", ev.Seq, ev.Status)
	}
}

func report(out io.Writer, rec engine.Record) error {
	fmt.Fprintf(out, "status: %s, credits used: %d\n", rec.Status, rec.CreditsUsed)
	if len(rec.OutputData) > 0 {
		data, err := json.MarshalIndent(rec.OutputData, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	}
	if rec.Status != engine.ExecutionSucceeded {
		if rec.ErrorMessage != "" {
			return fmt.Errorf("execution %s: %s", rec.Status, rec.ErrorMessage)
		}
		return fmt.Errorf("execution %s", rec.Status)
	}
	return nil
}

func listNodeTypes(out io.Writer, registry *node.Registry) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tCATEGORY\tINPUTS\tOUTPUTS")
	for _, def := range registry.Definitions() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", def.Kind, def.Category, ports(def.Inputs), ports(def.Outputs))
	}
	tw.Flush()
}

func ports(ps []graph.Port) string {
	if len(ps) == 0 {
		return "-"
	}
	names := make([]string, 0, len(ps))
	for _, p := range ps {
		name := p.Name + ":" + string(p.Type)
		if p.Required {
			name += "*"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func listModels(out io.Writer, catalog *modelapi.Catalog, category string) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tCATEGORY\tCREDITS")
	for _, m := range catalog.Models(category) {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", m.ID, m.Category, m.CostPerRun)
	}
	tw.Flush()
}
