// The Pulumi program entry point. Reads stage and imageTag from stack
// config and declares the deployment; run it with the pulumi CLI.
package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/nattiechan/ecs-fargate/internal/config"
	"github.com/nattiechan/ecs-fargate/internal/stack"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		cfg, err := config.Load("")
		if err != nil {
			return err
		}

		conf := pulumiconfig.New(ctx, "")
		stage := conf.Require("stage")
		imageTag := conf.Require("imageTag")

		_, err = stack.NewDeployment(ctx, stack.DeploymentArgs{
			Stage:       stage,
			ImageTag:    imageTag,
			Conventions: cfg.Conventions,
		})
		return err
	})
}
