// Package stack declares the full resource graph for one deployment stage:
// network references, identities, task specification, load-balanced service
// and the security rule pair toward the data store. Assembly is a single
// linear pass; all cloud-side effects happen later in the provisioning
// engine's apply phase.
package stack

import (
	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudwatch"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ecs"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/lb"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/nattiechan/ecs-fargate/internal/config"
)

// HostnameOutput is the name of the published stack output holding the load
// balancer's DNS hostname.
const HostnameOutput = "serviceHostname"

// DeploymentArgs are the per-invocation inputs. Stage and ImageTag are the
// only values that vary between deployments; everything else is fixed by
// Conventions.
type DeploymentArgs struct {
	Stage       string
	ImageTag    string
	Conventions config.Conventions
	Resolver    Resolver
}

// Deployment holds the wired resource graph for one stage.
type Deployment struct {
	Cluster        *ecs.Cluster
	TaskDefinition *ecs.TaskDefinition
	Service        *ecs.Service
	LoadBalancer   *lb.LoadBalancer
	TargetGroup    *lb.TargetGroup
	Listener       *lb.Listener
	LogGroup       *cloudwatch.LogGroup
	ServiceSG      *ec2.SecurityGroup
	LoadBalancerSG *ec2.SecurityGroup

	// Hostname is the externally reachable hostname of the load balancer,
	// also exported as HostnameOutput.
	Hostname pulumi.StringOutput

	args              DeploymentArgs
	repository        RepositoryRef
	secret            SecretRef
	network           NetworkRef
	dbSecurityGroupID string
}

// NewDeployment assembles the resource graph for one {stage, image tag}
// pair and exports the service hostname. Lookup failures (missing
// parameter, secret, repository or network) abort the pass; nothing is
// retried locally.
func NewDeployment(ctx *pulumi.Context, args DeploymentArgs) (*Deployment, error) {
	if args.Resolver == nil {
		args.Resolver = NewAWSResolver()
	}

	d := &Deployment{args: args}

	// Resolve externally stored state first; everything downstream hangs off
	// these references.
	secretName, err := args.Resolver.Parameter(ctx, args.Conventions.SecretNameParameter)
	if err != nil {
		return nil, err
	}
	d.secret, err = args.Resolver.Secret(ctx, secretName)
	if err != nil {
		return nil, err
	}
	d.dbSecurityGroupID, err = args.Resolver.Parameter(ctx, args.Conventions.DBSecurityGroupParameter)
	if err != nil {
		return nil, err
	}
	d.repository, err = args.Resolver.Repository(ctx, args.Conventions.RepositoryName)
	if err != nil {
		return nil, err
	}
	d.network, err = args.Resolver.Network(ctx)
	if err != nil {
		return nil, err
	}

	roles, err := newTaskRoles(ctx, d)
	if err != nil {
		return nil, err
	}

	taskDef, err := newTaskDefinition(ctx, d, roles)
	if err != nil {
		return nil, err
	}
	d.TaskDefinition = taskDef

	sgs, err := newSecurityGroups(ctx, d)
	if err != nil {
		return nil, err
	}
	d.LoadBalancerSG = sgs.LoadBalancer
	d.ServiceSG = sgs.Service

	alb, targetGroup, listener, err := newLoadBalancer(ctx, d, sgs)
	if err != nil {
		return nil, err
	}
	d.LoadBalancer = alb
	d.TargetGroup = targetGroup
	d.Listener = listener

	cluster, service, err := newService(ctx, d, taskDef, sgs, targetGroup, listener)
	if err != nil {
		return nil, err
	}
	d.Cluster = cluster
	d.Service = service

	if err := newDatabaseRules(ctx, d, sgs); err != nil {
		return nil, err
	}

	d.Hostname = alb.DnsName
	ctx.Export(HostnameOutput, d.Hostname)

	return d, nil
}

// Program returns a pulumi.RunFunc assembling the deployment, for use with
// pulumi.Run and the Automation API alike.
func Program(stage, imageTag string, conv config.Conventions) pulumi.RunFunc {
	return func(ctx *pulumi.Context) error {
		_, err := NewDeployment(ctx, DeploymentArgs{
			Stage:       stage,
			ImageTag:    imageTag,
			Conventions: conv,
		})
		return errors.Wrapf(err, "failed to declare deployment for stage %q", stage)
	}
}
