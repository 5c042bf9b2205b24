package rollout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dhis2-sre/update-manager/pkg/model"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewExecutor(logger *slog.Logger, service *service) *executor {
	return &executor{logger: logger, service: service}
}

// executor advances the rollouts of all tenants. It starts due and starting rollouts and evaluates
// the conditions of the groups of running rollouts.
type executor struct {
	logger  *slog.Logger
	service *service
}

var executedStatuses = []model.RolloutStatus{
	model.RolloutStatusReady,
	model.RolloutStatusStarting,
	model.RolloutStatusRunning,
}

func (e executor) Name() string {
	return "rollout-executor"
}

func (e executor) Handle(ctx context.Context) error {
	tenants, err := e.service.repository.tenants(ctx, executedStatuses...)
	if err != nil {
		return err
	}

	var errs []error
	for _, tenant := range tenants {
		err := e.Execute(model.NewSystemContext(ctx, tenant))
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to execute rollouts of tenant %q: %w", tenant, err))
		}
	}
	return errors.Join(errs...)
}

// Execute advances the rollouts of the tenant in ctx.
func (e executor) Execute(ctx context.Context) error {
	rollouts, err := e.service.repository.findByStatus(ctx, executedStatuses...)
	if err != nil {
		return err
	}

	var errs []error
	for i := range rollouts {
		rollout := &rollouts[i]
		err := e.execute(ctx, rollout)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to execute rollout", "rolloutId", rollout.ID, "error", err)
			errs = append(errs, fmt.Errorf("rollout %d: %w", rollout.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (e executor) execute(ctx context.Context, rollout *model.Rollout) error {
	switch rollout.Status {
	case model.RolloutStatusReady:
		if rollout.StartAt == nil || rollout.StartAt.After(e.service.now()) {
			return nil
		}
		rollout.Status = model.RolloutStatusStarting
		if err := e.service.repository.save(ctx, rollout); err != nil {
			return err
		}
		return e.start(ctx, rollout)
	case model.RolloutStatusStarting:
		return e.start(ctx, rollout)
	case model.RolloutStatusRunning:
		return e.run(ctx, rollout)
	}
	return nil
}

// start runs the first group and schedules the others.
func (e executor) start(ctx context.Context, rollout *model.Rollout) error {
	for i := range rollout.Groups {
		group := &rollout.Groups[i]
		if i == 0 {
			if err := e.service.startGroup(ctx, rollout, group); err != nil {
				return err
			}
			continue
		}
		group.Status = model.RolloutGroupStatusScheduled
		if err := e.service.repository.saveGroup(ctx, group); err != nil {
			return err
		}
	}

	rollout.Status = model.RolloutStatusRunning
	e.logger.InfoContext(ctx, "Rollout started", "rolloutId", rollout.ID)
	return e.service.repository.save(ctx, rollout)
}

// run evaluates the conditions of the started groups. The rollout finishes once no group is left
// with active actions or waiting to be started.
func (e executor) run(ctx context.Context, rollout *model.Rollout) error {
	done := true
	for i := range rollout.Groups {
		group := &rollout.Groups[i]
		if !isStarted(group.Status) {
			done = false
			continue
		}

		progress, err := e.service.progress(ctx, rollout.ID, group.ID)
		if err != nil {
			return err
		}

		if group.Status == model.RolloutGroupStatusRunning && progress.failed(*group) {
			group.Status = model.RolloutGroupStatusError
			if err := e.service.repository.saveGroup(ctx, group); err != nil {
				return err
			}
			e.logger.InfoContext(ctx, "Rollout group exceeded its error threshold", "rolloutId", rollout.ID, "groupId", group.ID, "errored", progress.errored)
			return e.pause(ctx, rollout)
		}

		if next := successor(rollout, i); next != nil && progress.succeeded(*group) {
			if group.SuccessAction == model.ActionPause {
				return e.pause(ctx, rollout)
			}
			if err := e.service.startGroup(ctx, rollout, next); err != nil {
				return err
			}
		}

		if progress.active > 0 {
			done = false
			continue
		}
		if group.Status == model.RolloutGroupStatusRunning {
			group.Status = model.RolloutGroupStatusFinished
			if err := e.service.repository.saveGroup(ctx, group); err != nil {
				return err
			}
		}
	}

	if !done {
		return nil
	}
	rollout.Status = model.RolloutStatusFinished
	e.logger.InfoContext(ctx, "Rollout finished", "rolloutId", rollout.ID)
	return e.service.repository.save(ctx, rollout)
}

func (e executor) pause(ctx context.Context, rollout *model.Rollout) error {
	rollout.Status = model.RolloutStatusPaused
	e.logger.InfoContext(ctx, "Rollout paused", "rolloutId", rollout.ID)
	return e.service.repository.save(ctx, rollout)
}
