package migrations

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Env is what a migration step gets to work with.
type Env struct {
	Deployer  Deployer
	Artifacts ArtifactResolver
	Log       *logrus.Entry
}

type Step func(ctx context.Context, env *Env) error

// DeployContract returns a step that deploys the named contract once, looks
// the instance up and logs its address. Any failure is logged once and
// returned as is.
func DeployContract(name string, args ...interface{}) Step {
	return func(ctx context.Context, env *Env) error {
		instance, err := deploy(ctx, env, name, args)
		if err != nil {
			env.Log.Errorf("Error deploying %s: %v", name, err)
			return err
		}

		env.Log.Infof("%s deployed at: %s", name, instance.Address.Hex())
		return nil
	}
}

func deploy(ctx context.Context, env *Env, name string, args []interface{}) (*Instance, error) {
	artifact, err := env.Artifacts.Require(name)
	if err != nil {
		return nil, err
	}
	if err := env.Deployer.Deploy(ctx, artifact, args...); err != nil {
		return nil, err
	}
	return env.Deployer.Deployed(ctx, artifact)
}
