package stack

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/nattiechan/ecs-fargate/internal/naming"
)

// =============================================================================
// Policy Documents
// =============================================================================

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string            `json:"Effect"`
	Action    []string          `json:"Action"`
	Resource  []string          `json:"Resource,omitempty"`
	Principal *servicePrincipal `json:"Principal,omitempty"`
}

type servicePrincipal struct {
	Service string `json:"Service"`
}

func marshalPolicy(doc policyDocument) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal policy document")
	}
	return string(raw), nil
}

func assumeRolePolicy(principal string) (string, error) {
	return marshalPolicy(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Effect:    "Allow",
				Action:    []string{"sts:AssumeRole"},
				Principal: &servicePrincipal{Service: principal},
			},
		},
	})
}

// =============================================================================
// Roles
// =============================================================================

// taskRoles holds the two identities a task runs with: the execution role the
// container agent uses to pull the image and write logs, and the task role
// the application itself uses to read the database secret.
type taskRoles struct {
	Execution *iam.Role
	Task      *iam.Role
}

// newTaskRoles creates both roles with the minimal explicit action lists.
// No wildcard actions: the execution role can pull from the one repository
// and write to the one log group, the task role can read the one secret.
func newTaskRoles(ctx *pulumi.Context, d *Deployment) (*taskRoles, error) {
	trust, err := assumeRolePolicy(d.args.Conventions.ServicePrincipal)
	if err != nil {
		return nil, err
	}

	execRole, err := iam.NewRole(ctx, naming.Resource(d.args.Stage, "exec-role"), &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(trust),
		Tags: pulumi.StringMap{
			"Name": pulumi.String(naming.Display(d.args.Stage, "Execution Role")),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create execution role")
	}

	execPolicy, err := marshalPolicy(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Effect:   "Allow",
				Action:   []string{"ecr:GetAuthorizationToken"},
				Resource: []string{"*"},
			},
			{
				Effect: "Allow",
				Action: []string{
					"ecr:BatchCheckLayerAvailability",
					"ecr:GetDownloadUrlForLayer",
					"ecr:BatchGetImage",
				},
				Resource: []string{d.repository.ARN},
			},
			{
				Effect: "Allow",
				Action: []string{
					"logs:CreateLogStream",
					"logs:PutLogEvents",
				},
				Resource: []string{d.logGroupARNPattern()},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	_, err = iam.NewRolePolicy(ctx, naming.Resource(d.args.Stage, "exec-role-policy"), &iam.RolePolicyArgs{
		Role:   execRole.ID(),
		Policy: pulumi.String(execPolicy),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to attach execution role policy")
	}

	taskRole, err := iam.NewRole(ctx, naming.Resource(d.args.Stage, "task-role"), &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(trust),
		Tags: pulumi.StringMap{
			"Name": pulumi.String(naming.Display(d.args.Stage, "Task Role")),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create task role")
	}

	// Scoped to the resolved secret only
	taskPolicy, err := marshalPolicy(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Effect:   "Allow",
				Action:   []string{"secretsmanager:GetSecretValue"},
				Resource: []string{d.secret.ARN},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	_, err = iam.NewRolePolicy(ctx, naming.Resource(d.args.Stage, "task-role-policy"), &iam.RolePolicyArgs{
		Role:   taskRole.ID(),
		Policy: pulumi.String(taskPolicy),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to attach task role policy")
	}

	return &taskRoles{Execution: execRole, Task: taskRole}, nil
}
