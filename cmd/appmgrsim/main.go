// Command appmgrsim drives an appmgr.Coordinator against the in-memory
// simcollab.Reference collaborator set, for exercising the scheduler
// end to end outside of a test binary and printing a stats report.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jbrown-smtsim/appmgr/internal/appmgr"
	"github.com/jbrown-smtsim/appmgr/internal/config"
	"github.com/jbrown-smtsim/appmgr/internal/eventqueue"
	"github.com/jbrown-smtsim/appmgr/internal/logging"
	"github.com/jbrown-smtsim/appmgr/internal/simcollab"
	"github.com/jbrown-smtsim/appmgr/internal/statsreport"
)

// Version is set during build using ldflags.
var Version = "dev"

func main() {
	app := &cli.Command{
		Name:    "appmgrsim",
		Version: Version,
		Usage:   "drive the context-swap scheduler against a synthetic workload",
		Commands: []*cli.Command{
			versionCommand(),
			validateCommand(),
			runCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print the version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("appmgrsim version %s\n", cmd.Root().Version)
			return nil
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "validate a configuration file",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return fmt.Errorf("config file path required")
			}
			path := cmd.Args().Get(0)
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Printf("configuration file %s is valid\n", path)
			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run a synthetic scheduling scenario and print a stats report",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a TOML config file, omit for defaults"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "trace|debug|info|warn|error"},
			&cli.IntFlag{Name: "cycles", Value: 1000, Usage: "number of cycles to simulate"},
			&cli.IntFlag{Name: "num-apps", Value: 4, Usage: "number of ready apps to start with"},
			&cli.IntFlag{Name: "num-contexts", Value: 4, Usage: "number of hardware contexts"},
			&cli.IntFlag{Name: "num-cores", Value: 2, Usage: "number of cores the contexts are spread across"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			handler := logging.SetupLogger(cmd.String("log-level"))

			cfg, err := loadRunConfig(cmd)
			if err != nil {
				return err
			}

			appmgrCfg, err := cfg.ToAppmgrConfig()
			if err != nil {
				return fmt.Errorf("failed to convert config: %w", err)
			}

			ref := simcollab.NewReference()
			collab := simcollab.Collaborators{
				Ctx:    ref,
				Bus:    ref,
				Cache:  ref,
				Inject: ref,
				TLB:    ref,
				RStack: ref,
				Dirty:  ref,
			}
			queue := eventqueue.New()

			coord, err := appmgr.New(appmgrCfg, collab, queue, handler)
			if err != nil {
				return fmt.Errorf("failed to build coordinator: %w", err)
			}

			numContexts := int(cmd.Int("num-contexts"))
			numCores := int(cmd.Int("num-cores"))
			if numCores < 1 {
				numCores = 1
			}
			for ctxID := 0; ctxID < numContexts; ctxID++ {
				core := ctxID % numCores
				if err := coord.RegisterIdleCtx(ctxID, core); err != nil {
					return fmt.Errorf("failed to register context %d: %w", ctxID, err)
				}
			}
			coord.SetupDone()

			numApps := int(cmd.Int("num-apps"))
			for appID := 0; appID < numApps; appID++ {
				if err := coord.AddReadyApp(0, appID); err != nil {
					return fmt.Errorf("failed to add app %d: %w", appID, err)
				}
			}

			cycles := cmd.Int("cycles")
			for now := int64(1); now <= cycles; now++ {
				coord.Tick(now)
				queue.RunUpTo(now)
				if err := coord.Err(); err != nil {
					return fmt.Errorf("simulation hit a fatal error at cycle %d: %w", now, err)
				}
			}

			return statsreport.Write(cmd.Writer, "run", coord.View())
		},
	}
}

func loadRunConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
