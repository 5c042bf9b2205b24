package dmf

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dhis2-sre/update-manager/pkg/model"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker/v2"
)

// Channel publishes AMQP messages. It is implemented by [amqp.Channel].
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// NewPublisher creates a publisher of DMF messages. Messages of targets whose address does not
// name an exchange are published to defaultExchange. Artifact URLs are only sent if downloadURL is
// set.
func NewPublisher(logger *slog.Logger, channel Channel, defaultExchange, downloadURL string) *Publisher {
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "dmf",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Publisher{
		logger:          logger,
		channel:         channel,
		breaker:         breaker,
		defaultExchange: defaultExchange,
		downloadURL:     strings.TrimSuffix(downloadURL, "/"),
	}
}

type Publisher struct {
	logger          *slog.Logger
	channel         Channel
	breaker         *gobreaker.CircuitBreaker[struct{}]
	defaultExchange string
	downloadURL     string
}

// exchange returns the exchange messages of a target with given address are published to. Only
// targets with an amqp address are connected through DMF.
func (p *Publisher) exchange(address string) (string, bool) {
	if address == "" {
		return "", false
	}

	u, err := url.Parse(address)
	if err != nil || u.Scheme != "amqp" {
		return "", false
	}

	exchange := strings.Trim(u.Path, "/")
	if exchange == "" {
		exchange = p.defaultExchange
	}
	return exchange, true
}

func (p *Publisher) publish(ctx context.Context, address string, headers amqp.Table, body any) error {
	exchange, ok := p.exchange(address)
	if !ok {
		return nil
	}

	payload := []byte{}
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode DMF message: %v", err)
		}
	}

	headers[HeaderContentType] = "application/json"
	msg := amqp.Publishing{
		Headers:      headers,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	}

	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.channel.PublishWithContext(ctx, exchange, "", false, false, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to publish DMF message to exchange %q: %v", exchange, err)
	}

	p.logger.DebugContext(ctx, "Published DMF message", "exchange", exchange, "headers", headers)
	return nil
}

func eventHeaders(tenant, controllerID string, topic Topic) amqp.Table {
	return amqp.Table{
		HeaderType:    string(MessageTypeEvent),
		HeaderTopic:   string(topic),
		HeaderThingID: controllerID,
		HeaderTenant:  tenant,
	}
}

// ThingDeleted notifies the target that it was deleted.
func (p *Publisher) ThingDeleted(ctx context.Context, target model.Target) error {
	headers := amqp.Table{
		HeaderType:    string(MessageTypeThingDeleted),
		HeaderThingID: target.ControllerID,
		HeaderTenant:  target.Tenant,
	}
	return p.publish(ctx, target.Address, headers, nil)
}

// RequestAttributesUpdate asks the target to send its attributes.
func (p *Publisher) RequestAttributesUpdate(ctx context.Context, target model.Target) error {
	headers := eventHeaders(target.Tenant, target.ControllerID, TopicRequestAttributesUpdate)
	return p.publish(ctx, target.Address, headers, nil)
}

// CancelDownload asks the target to cancel the action.
func (p *Publisher) CancelDownload(ctx context.Context, target model.Target, actionID uint) error {
	headers := eventHeaders(target.Tenant, target.ControllerID, TopicCancelDownload)
	return p.publish(ctx, target.Address, headers, ActionRequest{ActionID: actionID})
}

// Assign announces an action to its target. The topic depends on the type and status of the
// action.
func (p *Publisher) Assign(ctx context.Context, assignment Assignment) error {
	topic := TopicOf(assignment.Action)
	if topic == TopicCancelDownload {
		return p.CancelDownload(ctx, assignment.Target, assignment.Action.ID)
	}

	target := assignment.Target
	headers := eventHeaders(target.Tenant, target.ControllerID, topic)
	return p.publish(ctx, target.Address, headers, p.downloadAndUpdateRequest(assignment))
}

func (p *Publisher) downloadAndUpdateRequest(assignment Assignment) DownloadAndUpdateRequest {
	modules := make([]SoftwareModule, 0, len(assignment.Modules))
	for _, module := range assignment.Modules {
		m := SoftwareModule{
			ModuleID:      module.ID,
			ModuleType:    module.Type.Key,
			ModuleVersion: module.Version,
			Artifacts:     make([]Artifact, 0, len(module.Artifacts)),
		}
		if module.Encrypted {
			encrypted := true
			m.Encrypted = &encrypted
		}
		for _, artifact := range module.Artifacts {
			m.Artifacts = append(m.Artifacts, p.artifact(artifact))
		}
		for _, metadata := range assignment.Metadata[module.ID] {
			m.Metadata = append(m.Metadata, Metadata{Key: metadata.Key, Value: metadata.Value})
		}
		modules = append(modules, m)
	}

	return DownloadAndUpdateRequest{
		ActionID:            assignment.Action.ID,
		TargetSecurityToken: assignment.Target.SecurityToken,
		SoftwareModules:     modules,
	}
}

func (p *Publisher) artifact(artifact model.Artifact) Artifact {
	a := Artifact{
		Filename:     artifact.Filename,
		Hashes:       ArtifactHash{SHA1: artifact.SHA1, MD5: artifact.MD5},
		Size:         artifact.Size,
		LastModified: model.Millis(artifact.UpdatedAt),
	}
	if p.downloadURL != "" {
		protocol := "HTTP"
		if strings.HasPrefix(p.downloadURL, "https://") {
			protocol = "HTTPS"
		}
		a.URLs = map[string]string{
			protocol: fmt.Sprintf("%s/softwaremodules/%d/artifacts/%d/download", p.downloadURL, artifact.SoftwareModuleID, artifact.ID),
		}
	}
	return a
}
