package stemma

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"gitlab.com/stemma-project/stemma/internal/log"
	"gitlab.com/stemma-project/stemma/internal/stemma/branch"
	"gitlab.com/stemma-project/stemma/internal/stemma/graph"
	"gitlab.com/stemma-project/stemma/internal/stemma/kvfamily"
)

func newReplayCmd() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Replay a scripted editing session, example usage: stemma replay --scenario session.toml",
		UsageText: "stemma replay --scenario <file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "scenario",
				Usage:    "Path to the scenario TOML file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format of the final state, table or log",
				Value: "table",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level for replay output, overrides the configuration",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format, text or json, overrides the configuration",
			},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() > 0 {
				return fmt.Errorf("no arguments required, use -h for help")
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			format, level := cfg.Logging.Format, cfg.Logging.Level
			if ctx.IsSet("log-format") {
				format = ctx.String("log-format")
			}
			if ctx.IsSet("log-level") {
				level = ctx.String("log-level")
			}

			logger, err := log.Configure(ctx.App.ErrWriter, format, level)
			if err != nil {
				return fmt.Errorf("configure logger: %w", err)
			}

			scenario, err := LoadScenario(ctx.String("scenario"))
			if err != nil {
				return err
			}

			session := newReplaySession(logger)
			if err := session.run(scenario); err != nil {
				return err
			}

			switch format := ctx.String("format"); format {
			case "table":
				session.render(ctx.App.Writer)
			case "log":
				session.renderLog()
			default:
				return fmt.Errorf("invalid output format %q", format)
			}
			return nil
		},
	}
}

type replayBranch struct {
	branch     *kvfamily.Branch
	view       *kvfamily.View
	transactor *kvfamily.Transactor
	applied    int
}

type replaySession struct {
	logger   log.Logger
	minter   *graph.Minter
	metrics  *branch.Metrics
	names    []string
	branches map[string]*replayBranch
}

func newReplaySession(logger log.Logger) *replaySession {
	s := &replaySession{
		logger:   logger,
		minter:   graph.NewMinter(),
		metrics:  branch.NewMetrics(),
		branches: map[string]*replayBranch{},
	}

	root := kvfamily.NewRoot(s.minter.Mint)
	main := kvfamily.NewBranch(logger, s.minter.Mint, root, branch.WithMetrics(s.metrics))
	s.track("main", main, kvfamily.NewView())

	return s
}

func (s *replaySession) track(name string, b *kvfamily.Branch, view *kvfamily.View) *replayBranch {
	view.Attach(b)
	rb := &replayBranch{
		branch:     b,
		view:       view,
		transactor: branch.NewTransactor(b),
	}
	b.OnAfterChange(func(event branch.ChangeEvent[kvfamily.Change]) {
		rb.applied += len(event.NewCommits)
	})

	s.names = append(s.names, name)
	s.branches[name] = rb
	return rb
}

func (s *replaySession) lookup(name string) (*replayBranch, error) {
	rb, ok := s.branches[name]
	if !ok {
		return nil, fmt.Errorf("unknown branch %q", name)
	}
	return rb, nil
}

func (s *replaySession) run(scenario Scenario) error {
	for i, step := range scenario.Steps {
		if err := s.step(step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
		}
		s.logger.WithFields(log.Fields{
			"step":   i + 1,
			"action": step.Action,
			"branch": step.Branch,
		}).Debug("step executed")
	}
	return nil
}

func (s *replaySession) step(step Step) error {
	rb, err := s.lookup(step.Branch)
	if err != nil {
		return err
	}

	switch step.Action {
	case "apply":
		editor := rb.branch.Editor()
		if step.Guarded {
			editor.SetIfUnchanged(step.Key, rb.view.Get(step.Key), step.Value)
		} else {
			editor.Set(step.Key, rb.view.Get(step.Key), step.Value)
		}
	case "fork":
		if step.Name == "" {
			return fmt.Errorf("fork requires a name")
		}
		if _, ok := s.branches[step.Name]; ok {
			return fmt.Errorf("branch %q already exists", step.Name)
		}
		child, err := rb.branch.Fork()
		if err != nil {
			return err
		}
		s.track(step.Name, child, kvfamily.NewViewFrom(rb.view.Snapshot()))
	case "merge":
		from, err := s.lookup(step.From)
		if err != nil {
			return err
		}
		if _, err := rb.branch.Merge(from.branch); err != nil {
			return err
		}
	case "rebase":
		onto, err := s.lookup(step.Onto)
		if err != nil {
			return err
		}
		if _, err := rb.branch.RebaseOnto(onto.branch, nil); err != nil {
			return err
		}
	case "begin":
		return rb.transactor.Begin()
	case "commit":
		return rb.transactor.Commit()
	case "abort":
		return rb.transactor.Abort()
	case "rollback":
		target := rb.branch.Head()
		for i := 0; i < step.Count; i++ {
			parent := target.Parent()
			if parent == nil {
				return fmt.Errorf("cannot roll back %d commits, history is shorter", step.Count)
			}
			target = parent
		}
		if _, err := rb.branch.Rollback(target.Revision()); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}

	return nil
}

func (s *replaySession) render(writer io.Writer) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader([]string{"Branch", "Head", "Commits", "State"})

	for _, name := range s.names {
		rb := s.branches[name]
		table.Append([]string{
			name,
			rb.branch.Head().Revision().String(),
			strconv.Itoa(rb.applied),
			renderState(rb.view.Snapshot()),
		})
	}

	table.Render()
}

func (s *replaySession) renderLog() {
	for _, name := range s.names {
		rb := s.branches[name]
		s.logger.WithFields(log.Fields{
			"branch":  name,
			"head":    rb.branch.Head().Revision().String(),
			"commits": rb.applied,
			"state":   renderState(rb.view.Snapshot()),
		}).Info("final branch state")
	}
}

func renderState(state map[string]string) string {
	keys := make([]string, 0, len(state))
	for key := range state {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+state[key])
	}
	return strings.Join(pairs, " ")
}
