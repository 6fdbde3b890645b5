package preflight

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nattiechan/ecs-fargate/internal/config"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeParameters struct {
	values map[string]string
	err    error
}

func (f *fakeParameters) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	value, ok := f.values[aws.ToString(in.Name)]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{Value: aws.String(value)},
	}, nil
}

type fakeSecrets struct {
	err error
}

func (f *fakeSecrets) DescribeSecret(_ context.Context, _ *secretsmanager.DescribeSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.DescribeSecretOutput{}, nil
}

type fakeRepositories struct {
	repoErr  error
	imageErr error
}

func (f *fakeRepositories) DescribeRepositories(_ context.Context, _ *ecr.DescribeRepositoriesInput, _ ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error) {
	if f.repoErr != nil {
		return nil, f.repoErr
	}
	return &ecr.DescribeRepositoriesOutput{}, nil
}

func (f *fakeRepositories) DescribeImages(_ context.Context, _ *ecr.DescribeImagesInput, _ ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error) {
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return &ecr.DescribeImagesOutput{}, nil
}

func testChecker(p *fakeParameters, s *fakeSecrets, r *fakeRepositories) *Checker {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newCheckerWithClients(p, s, r, cfg.Conventions, logger)
}

func healthyParameters() *fakeParameters {
	return &fakeParameters{values: map[string]string{
		"/web-server/db-secret-name":       "staging/db-credentials",
		"/web-server/db-security-group-id": "sg-0db0000000000000d",
	}}
}

// =============================================================================
// Tests
// =============================================================================

func TestRun_AllHealthy(t *testing.T) {
	c := testChecker(healthyParameters(), &fakeSecrets{}, &fakeRepositories{})

	findings := c.Run(context.Background(), "abc123")
	require.Len(t, findings, 5)
	for _, f := range findings {
		assert.True(t, f.OK, "check %q should pass: %s", f.Name, f.Detail)
	}
}

func TestRun_NoImageTagSkipsImageCheck(t *testing.T) {
	c := testChecker(healthyParameters(), &fakeSecrets{}, &fakeRepositories{})

	findings := c.Run(context.Background(), "")
	require.Len(t, findings, 4)
	for _, f := range findings {
		assert.NotEqual(t, "image tag", f.Name)
	}
}

func TestRun_MissingParameter(t *testing.T) {
	c := testChecker(&fakeParameters{values: map[string]string{}}, &fakeSecrets{}, &fakeRepositories{})

	findings := c.Run(context.Background(), "")
	require.Len(t, findings, 4)

	byName := map[string]Finding{}
	for _, f := range findings {
		byName[f.Name] = f
	}

	assert.False(t, byName["secret name parameter"].OK)
	assert.Contains(t, byName["secret name parameter"].Detail, "ParameterNotFound")
	// Secret check is skipped when its name cannot be resolved
	assert.False(t, byName["database secret"].OK)
	assert.Contains(t, byName["database secret"].Detail, "skipped")
}

func TestRun_APIErrorClassified(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "not authorized"}
	c := testChecker(healthyParameters(), &fakeSecrets{err: apiErr}, &fakeRepositories{})

	findings := c.Run(context.Background(), "")
	byName := map[string]Finding{}
	for _, f := range findings {
		byName[f.Name] = f
	}

	assert.False(t, byName["database secret"].OK)
	assert.Equal(t, "AccessDeniedException: not authorized", byName["database secret"].Detail)
}

func TestRun_ImageTagMissing(t *testing.T) {
	imageErr := &smithy.GenericAPIError{Code: "ImageNotFoundException", Message: "no such tag"}
	c := testChecker(healthyParameters(), &fakeSecrets{}, &fakeRepositories{imageErr: imageErr})

	findings := c.Run(context.Background(), "bogus")
	byName := map[string]Finding{}
	for _, f := range findings {
		byName[f.Name] = f
	}

	assert.True(t, byName["image repository"].OK)
	assert.False(t, byName["image tag"].OK)
	assert.Contains(t, byName["image tag"].Detail, "ImageNotFoundException")
}

func TestClassify_PlainError(t *testing.T) {
	assert.Equal(t, "boom", classify(errors.New("boom")))
}
