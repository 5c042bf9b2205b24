package query

func metadataField(owner string) Field {
	return Field{
		Column:   "metadata.value",
		Subquery: "id IN (SELECT metadata.owner_id FROM metadata WHERE metadata.owner_kind = '" + owner + "' AND metadata.key = ? AND %s)",
		Keyed:    true,
	}
}

func auditFields(fields Fields) Fields {
	fields["createdat"] = Field{Column: "created_at", Type: Time}
	fields["createdby"] = Field{Column: "created_by"}
	fields["lastmodifiedat"] = Field{Column: "updated_at", Type: Time}
	fields["lastmodifiedby"] = Field{Column: "last_modified_by"}
	return fields
}

var TargetFields = auditFields(Fields{
	"id":                      {Column: "controller_id"},
	"controllerid":            {Column: "controller_id"},
	"name":                    {Column: "name"},
	"description":             {Column: "description"},
	"updatestatus":            {Column: "update_status", Type: Enum},
	"address":                 {Column: "address"},
	"ipaddress":               {Column: "address"},
	"group":                   {Column: "target_group"},
	"lastcontrollerrequestat": {Column: "last_controller_request_at", Type: Time},
	"installedat":             {Column: "installed_at", Type: Time},
	"tag": {
		Column:   "tags.name",
		Subquery: "id IN (SELECT target_tag_assignments.target_id FROM target_tag_assignments JOIN tags ON tags.id = target_tag_assignments.tag_id WHERE %s)",
	},
	"targettype.key": {
		Column:   "target_types.key",
		Subquery: "target_type_id IN (SELECT target_types.id FROM target_types WHERE %s)",
	},
	"targettype.name": {
		Column:   "target_types.name",
		Subquery: "target_type_id IN (SELECT target_types.id FROM target_types WHERE %s)",
	},
	"assignedds.name": {
		Column:   "distribution_sets.name",
		Subquery: "assigned_distribution_set_id IN (SELECT distribution_sets.id FROM distribution_sets WHERE %s)",
	},
	"assignedds.version": {
		Column:   "distribution_sets.version",
		Subquery: "assigned_distribution_set_id IN (SELECT distribution_sets.id FROM distribution_sets WHERE %s)",
	},
	"installedds.name": {
		Column:   "distribution_sets.name",
		Subquery: "installed_distribution_set_id IN (SELECT distribution_sets.id FROM distribution_sets WHERE %s)",
	},
	"installedds.version": {
		Column:   "distribution_sets.version",
		Subquery: "installed_distribution_set_id IN (SELECT distribution_sets.id FROM distribution_sets WHERE %s)",
	},
	"attribute": {Column: "attributes ->> ?", Keyed: true},
	"metadata":  metadataField("target"),
	"failedrollout": {
		Column:   "actions.rollout_id",
		Type:     Number,
		Subquery: "id IN (SELECT actions.target_id FROM actions WHERE actions.status = 'error' AND %s)",
	},
})

func tagFields() Fields {
	return auditFields(Fields{
		"id":          {Column: "id", Type: Number},
		"name":        {Column: "name"},
		"description": {Column: "description"},
		"colour":      {Column: "colour"},
	})
}

var TagFields = tagFields()

func typeFields() Fields {
	fields := tagFields()
	fields["key"] = Field{Column: "key"}
	return fields
}

var TargetTypeFields = typeFields()

var DistributionSetTypeFields = typeFields()

var SoftwareModuleTypeFields = func() Fields {
	fields := typeFields()
	fields["maxassignments"] = Field{Column: "max_assignments", Type: Number}
	return fields
}()

var DistributionSetFields = auditFields(Fields{
	"id":          {Column: "id", Type: Number},
	"name":        {Column: "name"},
	"version":     {Column: "version"},
	"description": {Column: "description"},
	"complete":    {Column: "complete", Type: Bool},
	"valid":       {Column: "valid", Type: Bool},
	"locked":      {Column: "locked", Type: Bool},
	"type": {
		Column:   "distribution_set_types.key",
		Subquery: "type_id IN (SELECT distribution_set_types.id FROM distribution_set_types WHERE %s)",
	},
	"tag": {
		Column:   "tags.name",
		Subquery: "id IN (SELECT distribution_set_tag_assignments.distribution_set_id FROM distribution_set_tag_assignments JOIN tags ON tags.id = distribution_set_tag_assignments.tag_id WHERE %s)",
	},
	"module": {
		Column:   "software_modules.name",
		Subquery: "id IN (SELECT distribution_set_modules.distribution_set_id FROM distribution_set_modules JOIN software_modules ON software_modules.id = distribution_set_modules.software_module_id WHERE %s)",
	},
	"metadata": metadataField("distributionset"),
})

var SoftwareModuleFields = auditFields(Fields{
	"id":          {Column: "id", Type: Number},
	"name":        {Column: "name"},
	"version":     {Column: "version"},
	"description": {Column: "description"},
	"vendor":      {Column: "vendor"},
	"type": {
		Column:   "software_module_types.key",
		Subquery: "type_id IN (SELECT software_module_types.id FROM software_module_types WHERE %s)",
	},
	"metadata": metadataField("softwaremodule"),
})

var MetadataFields = Fields{
	"key":   {Column: "key"},
	"value": {Column: "value"},
}

var ActionFields = auditFields(Fields{
	"id":             {Column: "id", Type: Number},
	"active":         {Column: "active", Type: Bool},
	"status":         {Column: "status", Type: Enum},
	"detailstatus":   {Column: "status", Type: Enum},
	"weight":         {Column: "weight", Type: Number},
	"laststatuscode": {Column: "last_status_code", Type: Number},
	"externalref":    {Column: "external_ref"},
	"type":           {Column: "type", Type: Enum},
	"target.id": {
		Column:   "targets.controller_id",
		Subquery: "target_id IN (SELECT targets.id FROM targets WHERE %s)",
	},
	"target.name": {
		Column:   "targets.name",
		Subquery: "target_id IN (SELECT targets.id FROM targets WHERE %s)",
	},
	"distributionset.id": {Column: "distribution_set_id", Type: Number},
	"distributionset.name": {
		Column:   "distribution_sets.name",
		Subquery: "distribution_set_id IN (SELECT distribution_sets.id FROM distribution_sets WHERE %s)",
	},
	"distributionset.version": {
		Column:   "distribution_sets.version",
		Subquery: "distribution_set_id IN (SELECT distribution_sets.id FROM distribution_sets WHERE %s)",
	},
	"rollout.id": {Column: "rollout_id", Type: Number},
	"rollout.name": {
		Column:   "rollouts.name",
		Subquery: "rollout_id IN (SELECT rollouts.id FROM rollouts WHERE %s)",
	},
})

var ActionStatusFields = Fields{
	"id":         {Column: "id", Type: Number},
	"status":     {Column: "status", Type: Enum},
	"reportedat": {Column: "created_at", Type: Time},
	"createdat":  {Column: "created_at", Type: Time},
	"timestamp":  {Column: "occurred_at", Type: Time},
}

var RolloutFields = auditFields(Fields{
	"id":                 {Column: "id", Type: Number},
	"name":               {Column: "name"},
	"description":        {Column: "description"},
	"status":             {Column: "status", Type: Enum},
	"distributionset.id": {Column: "distribution_set_id", Type: Number},
	"distributionset.name": {
		Column:   "distribution_sets.name",
		Subquery: "distribution_set_id IN (SELECT distribution_sets.id FROM distribution_sets WHERE %s)",
	},
	"distributionset.version": {
		Column:   "distribution_sets.version",
		Subquery: "distribution_set_id IN (SELECT distribution_sets.id FROM distribution_sets WHERE %s)",
	},
})

var RolloutGroupFields = auditFields(Fields{
	"id":          {Column: "id", Type: Number},
	"name":        {Column: "name"},
	"description": {Column: "description"},
	"status":      {Column: "status", Type: Enum},
})

var TargetFilterQueryFields = auditFields(Fields{
	"id":    {Column: "id", Type: Number},
	"name":  {Column: "name"},
	"query": {Column: "query"},
	"autoassigndistributionset.name": {
		Column:   "distribution_sets.name",
		Subquery: "auto_assign_distribution_set_id IN (SELECT distribution_sets.id FROM distribution_sets WHERE %s)",
	},
	"autoassigndistributionset.version": {
		Column:   "distribution_sets.version",
		Subquery: "auto_assign_distribution_set_id IN (SELECT distribution_sets.id FROM distribution_sets WHERE %s)",
	},
})
