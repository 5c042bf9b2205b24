package bootstrap_test

import (
	"context"
	"testing"

	"github.com/dhis2-sre/update-manager/pkg/bootstrap"
	"github.com/dhis2-sre/update-manager/pkg/distributionsettype"
	"github.com/dhis2-sre/update-manager/pkg/inttest"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/softwaremoduletype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultTypes(t *testing.T) {
	t.Parallel()

	db := inttest.SetupDB(t)
	logger := inttest.Logger()
	smTypeService := softwaremoduletype.NewService(softwaremoduletype.NewRepository(db))
	dsTypeService := distributionsettype.NewService(distributionsettype.NewRepository(db), smTypeService)

	err := bootstrap.LoadDefaultTypes(context.Background(), logger, "DEFAULT", smTypeService, dsTypeService)
	require.NoError(t, err)

	ctx := model.NewSystemContext(context.Background(), "DEFAULT")
	osAppType, err := dsTypeService.FindByKey(ctx, "os_app")
	require.NoError(t, err)
	assert.Equal(t, "OS with optional app", osAppType.Name)
	require.Len(t, osAppType.Elements, 3)

	mandatory := map[string]bool{}
	for _, element := range osAppType.Elements {
		smType, err := smTypeService.Find(ctx, element.SoftwareModuleTypeID)
		require.NoError(t, err)
		mandatory[smType.Key] = element.Mandatory
	}
	assert.Equal(t, map[string]bool{"os": true, "application": false, "runtime": false}, mandatory)

	t.Run("LoadingTwiceKeepsExistingTypes", func(t *testing.T) {
		err := bootstrap.LoadDefaultTypes(context.Background(), logger, "DEFAULT", smTypeService, dsTypeService)
		require.NoError(t, err)

		var count int64
		require.NoError(t, db.Model(&model.DistributionSetType{}).Where("tenant = ?", "DEFAULT").Count(&count).Error)
		assert.Equal(t, int64(3), count)
	})

	t.Run("OtherTenantsAreUntouched", func(t *testing.T) {
		_, err := dsTypeService.FindByKey(model.NewSystemContext(context.Background(), "acme"), "os")

		assert.Error(t, err)
	})
}
