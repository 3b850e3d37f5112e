package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"firestige.xyz/tzspd/internal/config"
	"firestige.xyz/tzspd/internal/core"
	"firestige.xyz/tzspd/pkg/plugin"
)

// Build creates the pipeline for profile, instantiating and initializing
// the actions of its capture plan. A profile without a capture plan gets a
// pipeline that only counts.
func Build(listenerID int, profile *config.Profile, plans map[string][]config.ActionSpec) (*Pipeline, error) {
	var specs []config.ActionSpec
	if profile.CapturePlan != "" {
		var ok bool
		specs, ok = plans[profile.CapturePlan]
		if !ok {
			return nil, fmt.Errorf("%w: %q (profile %q)", core.ErrPlanNotFound, profile.CapturePlan, profile.Name)
		}
	}

	actions, err := buildActions(specs)
	if err != nil {
		return nil, fmt.Errorf("profile %q plan %q: %w", profile.Name, profile.CapturePlan, err)
	}

	return New(Config{
		ListenerID: listenerID,
		Profile:    profile,
		PlanName:   profile.CapturePlan,
		Actions:    actions,
	}), nil
}

// BuildAll builds one pipeline per enabled profile; the slice index is the
// listener ID.
func BuildAll(cfg *config.GlobalConfig) ([]*Pipeline, error) {
	profiles := cfg.EnabledProfiles()
	pipelines := make([]*Pipeline, 0, len(profiles))
	for i, profile := range profiles {
		p, err := Build(i, profile, cfg.CapturePlans)
		if err != nil {
			var stopErr error
			for _, built := range pipelines {
				stopErr = multierr.Append(stopErr, built.Stop(context.Background()))
			}
			return nil, multierr.Append(err, stopErr)
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, nil
}

func buildActions(specs []config.ActionSpec) ([]plugin.Action, error) {
	actions := make([]plugin.Action, 0, len(specs))
	for i, spec := range specs {
		factory, err := plugin.GetActionFactory(spec.Action)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		a := factory()
		if err := a.Init(spec.Options); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, spec.Action, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}
