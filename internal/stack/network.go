package stack

import (
	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/nattiechan/ecs-fargate/internal/naming"
)

const anywhere = "0.0.0.0/0"

// securityGroups holds the two groups the deployment owns: one for the load
// balancer, one for the tasks. The data store's group is externally owned
// and only referenced.
type securityGroups struct {
	LoadBalancer *ec2.SecurityGroup
	Service      *ec2.SecurityGroup
}

// newSecurityGroups creates the load balancer and service security groups.
// Both allow all outbound traffic; inbound is the public listener port on
// the load balancer and the container port (from the load balancer only) on
// the service.
func newSecurityGroups(ctx *pulumi.Context, d *Deployment) (*securityGroups, error) {
	conv := d.args.Conventions

	albSG, err := ec2.NewSecurityGroup(ctx, naming.Resource(d.args.Stage, "alb-sg"), &ec2.SecurityGroupArgs{
		VpcId:       pulumi.String(d.network.VpcID),
		Description: pulumi.String("Public HTTP ingress for " + naming.Display(d.args.Stage, "Load Balancer")),
		Ingress: ec2.SecurityGroupIngressArray{
			ec2.SecurityGroupIngressArgs{
				Protocol:   pulumi.String("tcp"),
				FromPort:   pulumi.Int(conv.ListenerPort),
				ToPort:     pulumi.Int(conv.ListenerPort),
				CidrBlocks: pulumi.StringArray{pulumi.String(anywhere)},
			},
		},
		Egress: ec2.SecurityGroupEgressArray{
			ec2.SecurityGroupEgressArgs{
				Protocol:   pulumi.String("-1"),
				FromPort:   pulumi.Int(0),
				ToPort:     pulumi.Int(0),
				CidrBlocks: pulumi.StringArray{pulumi.String(anywhere)},
			},
		},
		Tags: pulumi.StringMap{
			"Name": pulumi.String(naming.Display(d.args.Stage, "ALB Security Group")),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create load balancer security group")
	}

	// The service group carries no inline rules: the database rule pair
	// attaches standalone SecurityGroupRule resources to it, and the
	// provider treats inline rules and standalone rules on the same group
	// as conflicting owners of the rule set (each apply would strip the
	// other's rules). Its own ingress and egress are standalone too.
	serviceSG, err := ec2.NewSecurityGroup(ctx, naming.Resource(d.args.Stage, "service-sg"), &ec2.SecurityGroupArgs{
		VpcId:       pulumi.String(d.network.VpcID),
		Description: pulumi.String("Task security group for " + naming.Display(d.args.Stage, "Service")),
		Tags: pulumi.StringMap{
			"Name": pulumi.String(naming.Display(d.args.Stage, "Service Security Group")),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create service security group")
	}

	_, err = ec2.NewSecurityGroupRule(ctx, naming.Resource(d.args.Stage, "service-ingress"), &ec2.SecurityGroupRuleArgs{
		Type:                  pulumi.String("ingress"),
		Protocol:              pulumi.String("tcp"),
		FromPort:              pulumi.Int(conv.ContainerPort),
		ToPort:                pulumi.Int(conv.ContainerPort),
		SecurityGroupId:       serviceSG.ID().ToStringOutput(),
		SourceSecurityGroupId: albSG.ID().ToStringOutput(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to allow load balancer to service traffic")
	}

	_, err = ec2.NewSecurityGroupRule(ctx, naming.Resource(d.args.Stage, "service-egress"), &ec2.SecurityGroupRuleArgs{
		Type:            pulumi.String("egress"),
		Protocol:        pulumi.String("-1"),
		FromPort:        pulumi.Int(0),
		ToPort:          pulumi.Int(0),
		CidrBlocks:      pulumi.StringArray{pulumi.String(anywhere)},
		SecurityGroupId: serviceSG.ID().ToStringOutput(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to allow service outbound traffic")
	}

	return &securityGroups{LoadBalancer: albSG, Service: serviceSG}, nil
}

// newDatabaseRules adds the directional allow-rule pair for the database
// port: service into the store's group, store into the service's group.
// Both rules exist on every deployment; the store's group itself is never
// otherwise modified.
func newDatabaseRules(ctx *pulumi.Context, d *Deployment, sgs *securityGroups) error {
	conv := d.args.Conventions

	_, err := ec2.NewSecurityGroupRule(ctx, naming.Resource(d.args.Stage, "service-to-db"), &ec2.SecurityGroupRuleArgs{
		Type:                  pulumi.String("ingress"),
		Protocol:              pulumi.String("tcp"),
		FromPort:              pulumi.Int(conv.DatabasePort),
		ToPort:                pulumi.Int(conv.DatabasePort),
		SecurityGroupId:       pulumi.String(d.dbSecurityGroupID),
		SourceSecurityGroupId: sgs.Service.ID().ToStringOutput(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to allow service to database traffic")
	}

	_, err = ec2.NewSecurityGroupRule(ctx, naming.Resource(d.args.Stage, "db-to-service"), &ec2.SecurityGroupRuleArgs{
		Type:                  pulumi.String("ingress"),
		Protocol:              pulumi.String("tcp"),
		FromPort:              pulumi.Int(conv.DatabasePort),
		ToPort:                pulumi.Int(conv.DatabasePort),
		SecurityGroupId:       sgs.Service.ID().ToStringOutput(),
		SourceSecurityGroupId: pulumi.String(d.dbSecurityGroupID),
	})
	if err != nil {
		return errors.Wrap(err, "failed to allow database to service traffic")
	}

	return nil
}
