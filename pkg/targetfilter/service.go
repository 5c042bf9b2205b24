package targetfilter

import (
	"context"
	"log/slog"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/deployment"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewService(
	logger *slog.Logger,
	repository filterRepository,
	distributionSetService distributionSetService,
	deploymentService deploymentService,
) *service {
	return &service{
		logger:                 logger,
		repository:             repository,
		distributionSetService: distributionSetService,
		deploymentService:      deploymentService,
	}
}

type filterRepository interface {
	find(ctx context.Context, id uint) (*model.TargetFilterQuery, error)
	findAll(ctx context.Context, params query.Params) ([]model.TargetFilterQuery, int64, error)
	findAllByDistributionSet(ctx context.Context, distributionSetID uint, params query.Params) ([]model.TargetFilterQuery, int64, error)
	findAutoAssigning(ctx context.Context) ([]model.TargetFilterQuery, error)
	tenants(ctx context.Context) ([]string, error)
	findUnassignedTargetIDs(ctx context.Context, filter string, ds *model.DistributionSet, limit int) ([]uint, error)
	create(ctx context.Context, filter *model.TargetFilterQuery) error
	save(ctx context.Context, filter *model.TargetFilterQuery) error
	delete(ctx context.Context, id uint) error
}

type distributionSetService interface {
	Find(ctx context.Context, id uint) (*model.DistributionSet, error)
}

type deploymentService interface {
	Assign(ctx context.Context, requests []deployment.Request) (*deployment.Result, error)
}

type service struct {
	logger                 *slog.Logger
	repository             filterRepository
	distributionSetService distributionSetService
	deploymentService      deploymentService
}

func (s service) Find(ctx context.Context, id uint) (*model.TargetFilterQuery, error) {
	return s.repository.find(ctx, id)
}

func (s service) FindAll(ctx context.Context, params query.Params) ([]model.TargetFilterQuery, int64, error) {
	return s.repository.findAll(ctx, params)
}

// FindAllByDistributionSet finds the filters automatically assigning the distribution set.
func (s service) FindAllByDistributionSet(ctx context.Context, distributionSetID uint, params query.Params) ([]model.TargetFilterQuery, int64, error) {
	if _, err := s.distributionSetService.Find(ctx, distributionSetID); err != nil {
		return nil, 0, err
	}
	return s.repository.findAllByDistributionSet(ctx, distributionSetID, params)
}

func validateQuery(filter string) error {
	if filter == "" {
		return errdef.NewBadRequest("target filter query is required")
	}
	_, _, err := query.Where(filter, query.TargetFields)
	return err
}

func (s service) Create(ctx context.Context, name, filter string) (*model.TargetFilterQuery, error) {
	if err := validateQuery(filter); err != nil {
		return nil, err
	}

	targetFilter := &model.TargetFilterQuery{Name: name, Query: filter}
	err := s.repository.create(ctx, targetFilter)
	if err != nil {
		return nil, err
	}
	return s.repository.find(ctx, targetFilter.ID)
}

type Update struct {
	Name  *string
	Query *string
}

func (s service) Update(ctx context.Context, id uint, update Update) (*model.TargetFilterQuery, error) {
	filter, err := s.repository.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		filter.Name = *update.Name
	}
	if update.Query != nil {
		if err := validateQuery(*update.Query); err != nil {
			return nil, err
		}
		filter.Query = *update.Query
	}

	err = s.repository.save(ctx, filter)
	if err != nil {
		return nil, err
	}
	return filter, nil
}

func (s service) Delete(ctx context.Context, id uint) error {
	if _, err := s.repository.find(ctx, id); err != nil {
		return err
	}
	return s.repository.delete(ctx, id)
}

// FindDistributionSet finds the distribution set the filter assigns automatically. It is nil if the
// filter doesn't assign one.
func (s service) FindDistributionSet(ctx context.Context, id uint) (*model.DistributionSet, error) {
	filter, err := s.repository.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if filter.AutoAssignDistributionSetID == nil {
		return nil, nil
	}
	return s.distributionSetService.Find(ctx, *filter.AutoAssignDistributionSetID)
}

// AutoAssign configures a filter to assign a distribution set to its matching targets.
type AutoAssign struct {
	DistributionSetID    uint
	Type                 model.ActionType
	Weight               *int
	ConfirmationRequired *bool
}

func (a AutoAssign) validate() error {
	if a.Type == model.ActionTypeTimeForced {
		return errdef.NewBadRequest("auto assignments can't be timeforced")
	}
	if a.Weight != nil && (*a.Weight < 0 || *a.Weight > 1000) {
		return errdef.NewBadRequest("weight must be between 0 and 1000")
	}
	return nil
}

// AssignDistributionSet makes the filter assign the distribution set to its targets from now on.
func (s service) AssignDistributionSet(ctx context.Context, id uint, autoAssign AutoAssign) (*model.TargetFilterQuery, error) {
	actionType, ok := model.ParseActionType(string(autoAssign.Type))
	if !ok {
		return nil, errdef.NewBadRequest("unknown action type %q", autoAssign.Type)
	}
	autoAssign.Type = actionType
	if err := autoAssign.validate(); err != nil {
		return nil, err
	}

	filter, err := s.repository.find(ctx, id)
	if err != nil {
		return nil, err
	}

	ds, err := s.distributionSetService.Find(ctx, autoAssign.DistributionSetID)
	if err != nil {
		return nil, err
	}
	if !ds.Assignable() {
		return nil, errdef.NewBadRequest("distribution set %d is incomplete, invalid or deleted and can't be assigned automatically", ds.ID)
	}

	filter.AutoAssignDistributionSetID = &ds.ID
	filter.AutoAssignDistributionSet = ds
	filter.AutoAssignActionType = autoAssign.Type
	filter.AutoAssignWeight = autoAssign.Weight
	filter.ConfirmationRequired = autoAssign.ConfirmationRequired == nil || *autoAssign.ConfirmationRequired
	if user, ok := model.GetUserFromContext(ctx); ok {
		filter.AutoAssignInitiatedBy = user.Username
	}

	err = s.repository.save(ctx, filter)
	if err != nil {
		return nil, err
	}
	return filter, nil
}

func (s service) UnassignDistributionSet(ctx context.Context, id uint) error {
	filter, err := s.repository.find(ctx, id)
	if err != nil {
		return err
	}

	filter.AutoAssignDistributionSetID = nil
	filter.AutoAssignDistributionSet = nil
	filter.AutoAssignActionType = ""
	filter.AutoAssignWeight = nil
	filter.AutoAssignInitiatedBy = ""
	return s.repository.save(ctx, filter)
}
