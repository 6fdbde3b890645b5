package stack

import (
	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ecr"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/secretsmanager"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ssm"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// SecretRef points at externally stored credential material. Only the ARN is
// held; the secret value is never read into the declaration.
type SecretRef struct {
	ARN string
}

// RepositoryRef identifies the container image repository.
type RepositoryRef struct {
	URL string
	ARN string
}

// NetworkRef identifies the existing network boundary the service runs in.
// The VPC and its subnets are externally owned; the declaration only
// references them.
type NetworkRef struct {
	VpcID     string
	SubnetIDs []string
}

// Resolver looks up externally stored state by name at provisioning time.
// Every lookup failure is fatal to the provisioning pass; there is no local
// retry or fallback.
type Resolver interface {
	// Parameter returns the value of a stored parameter.
	Parameter(ctx *pulumi.Context, name string) (string, error)

	// Secret returns a reference to a stored secret.
	Secret(ctx *pulumi.Context, name string) (SecretRef, error)

	// Repository returns a reference to a container image repository.
	Repository(ctx *pulumi.Context, name string) (RepositoryRef, error)

	// Network returns the existing VPC and its subnets.
	Network(ctx *pulumi.Context) (NetworkRef, error)
}

// NewAWSResolver returns a Resolver backed by live AWS lookups
// (SSM Parameter Store, Secrets Manager, ECR, EC2).
func NewAWSResolver() Resolver {
	return &awsResolver{}
}

type awsResolver struct{}

func (r *awsResolver) Parameter(ctx *pulumi.Context, name string) (string, error) {
	param, err := ssm.LookupParameter(ctx, &ssm.LookupParameterArgs{
		Name: name,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve stored parameter %q", name)
	}
	return param.Value, nil
}

func (r *awsResolver) Secret(ctx *pulumi.Context, name string) (SecretRef, error) {
	secret, err := secretsmanager.LookupSecret(ctx, &secretsmanager.LookupSecretArgs{
		Name: pulumi.StringRef(name),
	})
	if err != nil {
		return SecretRef{}, errors.Wrapf(err, "failed to resolve secret %q", name)
	}
	return SecretRef{ARN: secret.Arn}, nil
}

func (r *awsResolver) Repository(ctx *pulumi.Context, name string) (RepositoryRef, error) {
	repo, err := ecr.LookupRepository(ctx, &ecr.LookupRepositoryArgs{
		Name: name,
	})
	if err != nil {
		return RepositoryRef{}, errors.Wrapf(err, "failed to resolve image repository %q", name)
	}
	return RepositoryRef{URL: repo.RepositoryUrl, ARN: repo.Arn}, nil
}

func (r *awsResolver) Network(ctx *pulumi.Context) (NetworkRef, error) {
	vpc, err := ec2.LookupVpc(ctx, &ec2.LookupVpcArgs{
		Default: pulumi.BoolRef(true),
	})
	if err != nil {
		return NetworkRef{}, errors.Wrap(err, "failed to resolve default VPC")
	}

	subnets, err := ec2.GetSubnets(ctx, &ec2.GetSubnetsArgs{
		Filters: []ec2.GetSubnetsFilter{
			{Name: "vpc-id", Values: []string{vpc.Id}},
		},
	})
	if err != nil {
		return NetworkRef{}, errors.Wrapf(err, "failed to resolve subnets of VPC %s", vpc.Id)
	}

	return NetworkRef{VpcID: vpc.Id, SubnetIDs: subnets.Ids}, nil
}
