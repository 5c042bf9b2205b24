package tenantconfig

import (
	_ "embed"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"gopkg.in/yaml.v3"
)

const (
	PollingTime                = "pollingTime"
	PollingOverdueTime         = "pollingOverdueTime"
	MaxPollingTime             = "maxPollingTime"
	MinPollingTime             = "minPollingTime"
	RolloutApprovalEnabled     = "rollout.approval.enabled"
	UserConfirmationEnabled    = "user.confirmation.flow.enabled"
	MultiAssignmentsEnabled    = "multi.assignments.enabled"
	BatchAssignmentsEnabled    = "batch.assignments.enabled"
	ActionCleanupEnabled       = "action.cleanup.enabled"
	ActionCleanupExpiry        = "action.cleanup.actionExpiry"
	ActionCleanupStatus        = "action.cleanup.actionStatus"
	TargetTokenEnabled         = "authentication.targettoken.enabled"
	GatewayTokenEnabled        = "authentication.gatewaytoken.enabled"
	GatewayTokenKey            = "authentication.gatewaytoken.key"
	AnonymousDownloadEnabled   = "anonymous.download.enabled"
	RepositoryAutoCloseEnabled = "repository.actions.autoclose.enabled"
)

type valueType string

const (
	typeString   valueType = "string"
	typeBool     valueType = "bool"
	typeLong     valueType = "long"
	typeDuration valueType = "duration"
)

// definition of a configuration key. Default is the value used if the tenant did not override it.
type definition struct {
	Key     string    `yaml:"key"`
	Type    valueType `yaml:"type"`
	Default string    `yaml:"default"`
}

//go:embed defaults.yaml
var defaultsYAML []byte

func loadDefinitions(document []byte) (map[string]definition, error) {
	var list []definition
	if err := yaml.Unmarshal(document, &list); err != nil {
		return nil, fmt.Errorf("failed to parse tenant configuration defaults: %v", err)
	}

	definitions := make(map[string]definition, len(list))
	for _, d := range list {
		if _, err := d.parse(d.Default); err != nil {
			return nil, fmt.Errorf("invalid default of tenant configuration %q: %v", d.Key, err)
		}
		definitions[d.Key] = d
	}
	return definitions, nil
}

var durationPattern = regexp.MustCompile(`^(\d{2}):([0-5]\d):([0-5]\d)$`)

// ParseDuration parses durations formatted as HH:mm:ss.
func ParseDuration(s string) (time.Duration, error) {
	matches := durationPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("duration %q must be formatted as HH:mm:ss", s)
	}

	hours, _ := strconv.Atoi(matches[1])
	minutes, _ := strconv.Atoi(matches[2])
	seconds, _ := strconv.Atoi(matches[3])
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second, nil
}

// parse converts a stored value into its typed representation.
func (d definition) parse(stored string) (any, error) {
	switch d.Type {
	case typeBool:
		return strconv.ParseBool(stored)
	case typeLong:
		return strconv.ParseInt(stored, 10, 64)
	case typeDuration:
		if _, err := ParseDuration(stored); err != nil {
			return nil, err
		}
		return stored, nil
	case typeString:
		return stored, nil
	}
	return nil, fmt.Errorf("unknown type %q", d.Type)
}

// format validates a value received as JSON and converts it into its stored representation.
func (d definition) format(value any) (string, error) {
	switch d.Type {
	case typeBool:
		if b, ok := value.(bool); ok {
			return strconv.FormatBool(b), nil
		}
	case typeLong:
		if f, ok := value.(float64); ok && f == math.Trunc(f) {
			return strconv.FormatInt(int64(f), 10), nil
		}
	case typeDuration:
		if s, ok := value.(string); ok {
			if _, err := ParseDuration(s); err != nil {
				return "", errdef.NewBadRequest("invalid value of %q: %v", d.Key, err)
			}
			return s, nil
		}
	case typeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	}
	return "", errdef.NewBadRequest("value %v of %q must be of type %s", value, d.Key, d.Type)
}
