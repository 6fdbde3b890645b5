package stack

import (
	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ecs"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/lb"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/nattiechan/ecs-fargate/internal/naming"
)

// newLoadBalancer creates the internet-facing ALB, its target group on the
// container port and the plain HTTP listener.
func newLoadBalancer(ctx *pulumi.Context, d *Deployment, sgs *securityGroups) (*lb.LoadBalancer, *lb.TargetGroup, *lb.Listener, error) {
	conv := d.args.Conventions

	alb, err := lb.NewLoadBalancer(ctx, naming.Resource(d.args.Stage, "alb"), &lb.LoadBalancerArgs{
		Internal:         pulumi.Bool(false),
		LoadBalancerType: pulumi.String("application"),
		SecurityGroups:   pulumi.StringArray{sgs.LoadBalancer.ID().ToStringOutput()},
		Subnets:          pulumi.ToStringArray(d.network.SubnetIDs),
		Tags: pulumi.StringMap{
			"Name": pulumi.String(naming.Display(d.args.Stage, "Load Balancer")),
		},
	})
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to create load balancer")
	}

	targetGroup, err := lb.NewTargetGroup(ctx, naming.Resource(d.args.Stage, "tg"), &lb.TargetGroupArgs{
		Port:       pulumi.Int(conv.ContainerPort),
		Protocol:   pulumi.String("HTTP"),
		TargetType: pulumi.String("ip"),
		VpcId:      pulumi.String(d.network.VpcID),
		HealthCheck: &lb.TargetGroupHealthCheckArgs{
			Path:     pulumi.String("/"),
			Protocol: pulumi.String("HTTP"),
			Matcher:  pulumi.String("200-399"),
		},
	})
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to create target group")
	}

	// Plain HTTP only. An HTTPS listener (ACM certificate on :443 with an
	// HTTP->HTTPS redirect) would slot in here; it has never been wired up.
	listener, err := lb.NewListener(ctx, naming.Resource(d.args.Stage, "listener"), &lb.ListenerArgs{
		LoadBalancerArn: alb.Arn,
		Port:            pulumi.Int(conv.ListenerPort),
		Protocol:        pulumi.String("HTTP"),
		DefaultActions: lb.ListenerDefaultActionArray{
			lb.ListenerDefaultActionArgs{
				Type:           pulumi.String("forward"),
				TargetGroupArn: targetGroup.Arn,
			},
		},
	})
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to create listener")
	}

	return alb, targetGroup, listener, nil
}

// newService creates the cluster and the Fargate service bound to the task
// definition and the load balancer's target group.
func newService(ctx *pulumi.Context, d *Deployment, taskDef *ecs.TaskDefinition, sgs *securityGroups, targetGroup *lb.TargetGroup, listener *lb.Listener) (*ecs.Cluster, *ecs.Service, error) {
	conv := d.args.Conventions

	cluster, err := ecs.NewCluster(ctx, naming.Resource(d.args.Stage, "cluster"), &ecs.ClusterArgs{
		Name: pulumi.String(naming.Resource(d.args.Stage, "cluster")),
		Tags: pulumi.StringMap{
			"Name": pulumi.String(naming.Display(d.args.Stage, "Cluster")),
		},
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create cluster")
	}

	service, err := ecs.NewService(ctx, naming.Resource(d.args.Stage, "service"), &ecs.ServiceArgs{
		Cluster:        cluster.Arn,
		TaskDefinition: taskDef.Arn,
		DesiredCount:   pulumi.Int(conv.DesiredCount),
		LaunchType:     pulumi.String("FARGATE"),
		NetworkConfiguration: &ecs.ServiceNetworkConfigurationArgs{
			AssignPublicIp: pulumi.Bool(true),
			Subnets:        pulumi.ToStringArray(d.network.SubnetIDs),
			SecurityGroups: pulumi.StringArray{sgs.Service.ID().ToStringOutput()},
		},
		LoadBalancers: ecs.ServiceLoadBalancerArray{
			ecs.ServiceLoadBalancerArgs{
				ContainerName:  pulumi.String(containerName),
				ContainerPort:  pulumi.Int(conv.ContainerPort),
				TargetGroupArn: targetGroup.Arn,
			},
		},
		Tags: pulumi.StringMap{
			"Name": pulumi.String(naming.Display(d.args.Stage, "Service")),
		},
	}, pulumi.DependsOn([]pulumi.Resource{listener}))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create service")
	}

	return cluster, service, nil
}
