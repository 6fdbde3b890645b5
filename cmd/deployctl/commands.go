package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optdestroy"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optpreview"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optup"
	"github.com/spf13/cobra"

	"github.com/nattiechan/ecs-fargate/internal/config"
	"github.com/nattiechan/ecs-fargate/internal/preflight"
	"github.com/nattiechan/ecs-fargate/internal/stack"
)

const projectName = "ecs-fargate"

// awsPluginVersion is the provider plugin installed into the workspace.
// Keep in lockstep with the pulumi-aws SDK version in go.mod.
const awsPluginVersion = "v6.66.3"

// configError marks failures that happen before any stack operation starts,
// so run() can exit with ExitConfigError instead of ExitRunError.
type configError struct {
	err error
}

func (e *configError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.err)
}

func (e *configError) Unwrap() error {
	return e.err
}

// cmdContext carries everything a subcommand needs after flag parsing.
type cmdContext struct {
	cfg    *config.Config
	logger *slog.Logger

	stage    string
	imageTag string
	region   string
}

func newRootCommand() *cobra.Command {
	var configPath string
	cc := &cmdContext{}

	root := &cobra.Command{
		Use:           "deployctl",
		Short:         "Provision the web server's hosting environment",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return &configError{err: err}
			}
			cc.cfg = cfg
			cc.logger = config.SetupLogger(cfg)
			if cc.region == "" {
				cc.region = cfg.Conventions.Region
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	root.PersistentFlags().StringVar(&cc.stage, "stage", "", "Deployment stage name")
	root.PersistentFlags().StringVar(&cc.region, "region", "", "AWS region (defaults to configured region)")

	root.AddCommand(
		newUpCommand(cc),
		newPreviewCommand(cc),
		newDestroyCommand(cc),
		newOutputCommand(cc),
		newCheckCommand(cc),
	)
	return root
}

func newUpCommand(cc *cmdContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Deploy (or update) the stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStageAndTag(cc); err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := selectStack(ctx, cc, true)
			if err != nil {
				return err
			}
			cc.logger.Info("deploying", "stage", cc.stage, "image_tag", cc.imageTag, "region", cc.region)
			res, err := s.Up(ctx, optup.ProgressStreams(os.Stdout))
			if err != nil {
				return fmt.Errorf("deployment failed: %w", err)
			}
			if host, ok := res.Outputs[stack.HostnameOutput]; ok {
				cc.logger.Info("deployment complete", "stage", cc.stage, "hostname", host.Value)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cc.imageTag, "image-tag", "", "Immutable image tag to deploy")
	return cmd
}

func newPreviewCommand(cc *cmdContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Preview the changes a deploy would make",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStageAndTag(cc); err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := selectStack(ctx, cc, true)
			if err != nil {
				return err
			}
			_, err = s.Preview(ctx, optpreview.ProgressStreams(os.Stdout))
			if err != nil {
				return fmt.Errorf("preview failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cc.imageTag, "image-tag", "", "Immutable image tag to deploy")
	return cmd
}

func newDestroyCommand(cc *cmdContext) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy",
		Short: "Tear down the stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStage(cc); err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := selectStack(ctx, cc, false)
			if err != nil {
				return err
			}
			cc.logger.Info("destroying", "stage", cc.stage)
			_, err = s.Destroy(ctx, optdestroy.ProgressStreams(os.Stdout))
			if err != nil {
				return fmt.Errorf("destroy failed: %w", err)
			}
			return nil
		},
	}
}

func newOutputCommand(cc *cmdContext) *cobra.Command {
	return &cobra.Command{
		Use:   "output",
		Short: "Print the service hostname",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStage(cc); err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := selectStack(ctx, cc, false)
			if err != nil {
				return err
			}
			outputs, err := s.Outputs(ctx)
			if err != nil {
				return fmt.Errorf("failed to read outputs: %w", err)
			}
			host, ok := outputs[stack.HostnameOutput]
			if !ok {
				return fmt.Errorf("stack %q has no %s output; deploy first", cc.stage, stack.HostnameOutput)
			}
			fmt.Fprintln(cmd.OutOrStdout(), host.Value)
			return nil
		},
	}
}

func newCheckCommand(cc *cmdContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the externally stored state a deploy depends on",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStage(cc); err != nil {
				return err
			}
			ctx := cmd.Context()
			checker, err := preflight.NewChecker(ctx, cc.region, cc.cfg.Conventions, cc.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize AWS clients: %w", err)
			}
			findings := checker.Run(ctx, cc.imageTag)
			failed := 0
			for _, f := range findings {
				status := "ok"
				if !f.OK {
					status = "FAIL"
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-4s %-30s %s\n", status, f.Name, f.Detail)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(findings))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cc.imageTag, "image-tag", "", "Image tag to verify in the repository (optional)")
	return cmd
}

// selectStack creates or selects the per-stage Pulumi stack. withProgram
// binds the deployment declaration; destroy and output work against stored
// state and need none.
func selectStack(ctx context.Context, cc *cmdContext, withProgram bool) (auto.Stack, error) {
	program := stack.Program(cc.stage, cc.imageTag, cc.cfg.Conventions)
	if !withProgram {
		program = nil
	}

	s, err := auto.UpsertStackInlineSource(ctx, cc.stage, projectName, program)
	if err != nil {
		return auto.Stack{}, fmt.Errorf("failed to select stack %q: %w", cc.stage, err)
	}

	if err := s.Workspace().InstallPlugin(ctx, "aws", awsPluginVersion); err != nil {
		return auto.Stack{}, fmt.Errorf("failed to install aws plugin: %w", err)
	}
	if err := s.SetConfig(ctx, "aws:region", auto.ConfigValue{Value: cc.region}); err != nil {
		return auto.Stack{}, fmt.Errorf("failed to set region: %w", err)
	}
	return s, nil
}

func requireStage(cc *cmdContext) error {
	if cc.stage == "" {
		return fmt.Errorf("--stage is required")
	}
	return nil
}

func requireStageAndTag(cc *cmdContext) error {
	if err := requireStage(cc); err != nil {
		return err
	}
	if cc.imageTag == "" {
		return fmt.Errorf("--image-tag is required")
	}
	return nil
}
