// Package preflight verifies the externally stored state a deployment
// resolves at provisioning time, so a missing parameter or secret is caught
// before an apply is attempted. It only checks existence; secret values are
// never read.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	smithy "github.com/aws/smithy-go"

	"github.com/nattiechan/ecs-fargate/internal/config"
)

// Finding is the result of one dependency check.
type Finding struct {
	Name   string
	OK     bool
	Detail string
}

// Narrow client interfaces so tests can substitute fakes.

type parameterClient interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, opts ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type secretClient interface {
	DescribeSecret(ctx context.Context, in *secretsmanager.DescribeSecretInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
}

type repositoryClient interface {
	DescribeRepositories(ctx context.Context, in *ecr.DescribeRepositoriesInput, opts ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	DescribeImages(ctx context.Context, in *ecr.DescribeImagesInput, opts ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error)
}

// Checker runs the dependency checks against live AWS APIs.
type Checker struct {
	parameters   parameterClient
	secrets      secretClient
	repositories repositoryClient
	conventions  config.Conventions
	logger       *slog.Logger
}

// NewChecker creates a Checker with clients from the default AWS credential
// chain.
func NewChecker(ctx context.Context, region string, conv config.Conventions, logger *slog.Logger) (*Checker, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Checker{
		parameters:   ssm.NewFromConfig(cfg),
		secrets:      secretsmanager.NewFromConfig(cfg),
		repositories: ecr.NewFromConfig(cfg),
		conventions:  conv,
		logger:       logger.With("component", "preflight"),
	}, nil
}

// newCheckerWithClients is the test seam.
func newCheckerWithClients(p parameterClient, s secretClient, r repositoryClient, conv config.Conventions, logger *slog.Logger) *Checker {
	return &Checker{parameters: p, secrets: s, repositories: r, conventions: conv, logger: logger}
}

// Run executes every check and returns one finding per dependency. imageTag
// is optional; when empty the image existence check is skipped.
func (c *Checker) Run(ctx context.Context, imageTag string) []Finding {
	var findings []Finding

	secretName, f := c.checkParameter(ctx, "secret name parameter", c.conventions.SecretNameParameter)
	findings = append(findings, f)

	_, f = c.checkParameter(ctx, "db security group parameter", c.conventions.DBSecurityGroupParameter)
	findings = append(findings, f)

	if secretName != "" {
		findings = append(findings, c.checkSecret(ctx, secretName))
	} else {
		findings = append(findings, Finding{Name: "database secret", Detail: "skipped: secret name unresolved"})
	}

	findings = append(findings, c.checkRepository(ctx, imageTag)...)

	for _, f := range findings {
		if !f.OK {
			c.logger.Warn("preflight check failed", "check", f.Name, "detail", f.Detail)
		}
	}
	return findings
}

func (c *Checker) checkParameter(ctx context.Context, name, key string) (string, Finding) {
	out, err := c.parameters.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(key),
	})
	if err != nil {
		return "", Finding{Name: name, Detail: classify(err)}
	}
	return aws.ToString(out.Parameter.Value), Finding{Name: name, OK: true, Detail: key}
}

func (c *Checker) checkSecret(ctx context.Context, secretName string) Finding {
	// DescribeSecret confirms existence without reading the value
	_, err := c.secrets.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return Finding{Name: "database secret", Detail: classify(err)}
	}
	return Finding{Name: "database secret", OK: true, Detail: secretName}
}

func (c *Checker) checkRepository(ctx context.Context, imageTag string) []Finding {
	repoName := c.conventions.RepositoryName

	_, err := c.repositories.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{repoName},
	})
	if err != nil {
		return []Finding{{Name: "image repository", Detail: classify(err)}}
	}
	findings := []Finding{{Name: "image repository", OK: true, Detail: repoName}}

	if imageTag == "" {
		return findings
	}
	_, err = c.repositories.DescribeImages(ctx, &ecr.DescribeImagesInput{
		RepositoryName: aws.String(repoName),
		ImageIds: []ecrtypes.ImageIdentifier{
			{ImageTag: aws.String(imageTag)},
		},
	})
	if err != nil {
		return append(findings, Finding{Name: "image tag", Detail: classify(err)})
	}
	return append(findings, Finding{Name: "image tag", OK: true, Detail: imageTag})
}

// classify renders an AWS API error as "Code: message" when possible.
func classify(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err.Error()
}
