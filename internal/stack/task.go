package stack

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudwatch"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ecs"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/nattiechan/ecs-fargate/internal/naming"
)

// containerName is the name of the single container in the task definition.
// The service's load balancer registration refers to it by this name.
const containerName = "web-server"

// secretFields are the five fields bound from the database secret into the
// container environment. Each is referenced by ARN; the values stay in
// Secrets Manager.
var secretFields = []struct {
	Env   string
	Field string
}{
	{"DB_HOST", "host"},
	{"DB_NAME", "dbname"},
	{"DB_USER", "username"},
	{"DB_PASSWORD", "password"},
	{"DB_PORT", "port"},
}

// =============================================================================
// Container Definition JSON
// =============================================================================

// The ECS container definition wire shape. Only the fields this deployment
// sets are modeled.
type containerDefinition struct {
	Name             string            `json:"name"`
	Image            string            `json:"image"`
	Essential        bool              `json:"essential"`
	PortMappings     []portMapping     `json:"portMappings"`
	Environment      []keyValuePair    `json:"environment"`
	Secrets          []secretBinding   `json:"secrets"`
	LogConfiguration *logConfiguration `json:"logConfiguration,omitempty"`
}

type portMapping struct {
	ContainerPort int    `json:"containerPort"`
	Protocol      string `json:"protocol"`
}

type keyValuePair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type secretBinding struct {
	Name      string `json:"name"`
	ValueFrom string `json:"valueFrom"`
}

type logConfiguration struct {
	LogDriver string            `json:"logDriver"`
	Options   map[string]string `json:"options"`
}

// containerDefinitions renders the single-container definition list for the
// task. The DEPLOY_ID value is a fresh UUID on every assembly pass so the
// service redeploys even when the image tag is unchanged.
func (d *Deployment) containerDefinitions() (string, error) {
	conv := d.args.Conventions

	secrets := make([]secretBinding, 0, len(secretFields))
	for _, sf := range secretFields {
		// Secrets Manager field selector: <arn>:<json-key>:<version-stage>:<version-id>
		secrets = append(secrets, secretBinding{
			Name:      sf.Env,
			ValueFrom: fmt.Sprintf("%s:%s::", d.secret.ARN, sf.Field),
		})
	}

	defs := []containerDefinition{
		{
			Name:      containerName,
			Image:     fmt.Sprintf("%s:%s", d.repository.URL, d.args.ImageTag),
			Essential: true,
			PortMappings: []portMapping{
				{ContainerPort: conv.ContainerPort, Protocol: "tcp"},
			},
			Environment: []keyValuePair{
				{Name: "STAGE", Value: d.args.Stage},
				{Name: "PORT", Value: strconv.Itoa(conv.ContainerPort)},
				{Name: "DEPLOY_ID", Value: uuid.NewString()},
			},
			Secrets: secrets,
			LogConfiguration: &logConfiguration{
				LogDriver: "awslogs",
				Options: map[string]string{
					"awslogs-group":         naming.LogGroup(d.args.Stage, conv.RepositoryName),
					"awslogs-region":        conv.Region,
					"awslogs-stream-prefix": containerName,
				},
			},
		},
	}

	raw, err := json.Marshal(defs)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal container definitions")
	}
	return string(raw), nil
}

// logGroupARNPattern scopes the execution role's log permissions to this
// deployment's log group without needing the account ID at assembly time.
func (d *Deployment) logGroupARNPattern() string {
	return fmt.Sprintf("arn:aws:logs:*:*:log-group:%s:*", naming.LogGroup(d.args.Stage, d.args.Conventions.RepositoryName))
}

// =============================================================================
// Task Definition
// =============================================================================

// newTaskDefinition creates the log group and the Fargate task definition
// with the fixed resource shape.
func newTaskDefinition(ctx *pulumi.Context, d *Deployment, roles *taskRoles) (*ecs.TaskDefinition, error) {
	conv := d.args.Conventions

	logGroup, err := cloudwatch.NewLogGroup(ctx, naming.Resource(d.args.Stage, "logs"), &cloudwatch.LogGroupArgs{
		Name:            pulumi.String(naming.LogGroup(d.args.Stage, conv.RepositoryName)),
		RetentionInDays: pulumi.Int(conv.LogRetentionDays),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create log group")
	}

	defs, err := d.containerDefinitions()
	if err != nil {
		return nil, err
	}

	taskDef, err := ecs.NewTaskDefinition(ctx, naming.Resource(d.args.Stage, "task"), &ecs.TaskDefinitionArgs{
		Family:                  pulumi.String(naming.Resource(d.args.Stage, conv.RepositoryName)),
		Cpu:                     pulumi.String(strconv.Itoa(conv.TaskCPU)),
		Memory:                  pulumi.String(strconv.Itoa(conv.TaskMemory)),
		NetworkMode:             pulumi.String("awsvpc"),
		RequiresCompatibilities: pulumi.StringArray{pulumi.String("FARGATE")},
		ExecutionRoleArn:        roles.Execution.Arn,
		TaskRoleArn:             roles.Task.Arn,
		ContainerDefinitions:    pulumi.String(defs),
	}, pulumi.DependsOn([]pulumi.Resource{logGroup}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create task definition")
	}

	d.LogGroup = logGroup
	return taskDef, nil
}
