package targetfilter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dhis2-sre/update-manager/pkg/deployment"
	"github.com/dhis2-sre/update-manager/pkg/model"
)

// assignmentBatchSize bounds the targets assigned per filter and run.
const assignmentBatchSize = 1000

//goland:noinspection GoExportedFuncWithUnexportedType
func NewChecker(logger *slog.Logger, service *service) *checker {
	return &checker{logger: logger, service: service}
}

// checker assigns the distribution sets of auto assigning filters to the matching targets which never
// had an action of the set.
type checker struct {
	logger  *slog.Logger
	service *service
}

func (c checker) Name() string {
	return "auto-assign"
}

func (c checker) Handle(ctx context.Context) error {
	tenants, err := c.service.repository.tenants(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, tenant := range tenants {
		err := c.Check(model.NewSystemContext(ctx, tenant))
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to check auto assignments of tenant %q: %w", tenant, err))
		}
	}
	return errors.Join(errs...)
}

// Check runs the auto assignments of the tenant in ctx.
func (c checker) Check(ctx context.Context) error {
	filters, err := c.service.repository.findAutoAssigning(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, filter := range filters {
		assigned, err := c.check(ctx, filter)
		if err != nil {
			c.logger.ErrorContext(ctx, "Failed to auto assign", "targetFilterId", filter.ID, "error", err)
			errs = append(errs, fmt.Errorf("target filter %d: %w", filter.ID, err))
			continue
		}
		if assigned > 0 {
			c.logger.InfoContext(ctx, "Auto assigned distribution set", "targetFilterId", filter.ID, "distributionSetId", *filter.AutoAssignDistributionSetID, "targets", assigned)
		}
	}
	return errors.Join(errs...)
}

func (c checker) check(ctx context.Context, filter model.TargetFilterQuery) (int, error) {
	ds := filter.AutoAssignDistributionSet
	if ds == nil || !ds.Assignable() {
		return 0, nil
	}

	ids, err := c.service.repository.findUnassignedTargetIDs(ctx, filter.Query, ds, assignmentBatchSize)
	if err != nil || len(ids) == 0 {
		return 0, err
	}

	confirmationRequired := filter.ConfirmationRequired
	requests := make([]deployment.Request, 0, len(ids))
	for _, id := range ids {
		requests = append(requests, deployment.Request{
			TargetID:             id,
			DistributionSetID:    ds.ID,
			Type:                 filter.AutoAssignActionType,
			Weight:               filter.AutoAssignWeight,
			ConfirmationRequired: &confirmationRequired,
		})
	}

	result, err := c.service.deploymentService.Assign(ctx, requests)
	if err != nil {
		return 0, err
	}
	return result.Assigned, nil
}
