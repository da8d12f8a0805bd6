package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/marketplace-orders/pkg/config"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client hands out publishers for the outbox topics and the notification worker's subscriber.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// resource is a topic or subscription the services cannot run without.
type resource struct {
	kind string
	name string
}

// NewClient connects to Pub/Sub and refuses to start when a configured topic or subscription is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	psClient, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: psClient, projectID: projectID, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "gcp_project", projectID), "pubsub client initialized")
	}
	return c, nil
}

// clientOptions prefers inline credentials, then a key file, then application default credentials.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

func requiredResources(cfg config.PubSubConfig) []resource {
	var out []resource
	for _, r := range []resource{
		{kindTopic, cfg.OrdersTopic},
		{kindTopic, cfg.NotificationTopic},
		{kindSubscription, cfg.NotificationSubscription},
	} {
		if r.name = strings.TrimSpace(r.name); r.name != "" {
			out = append(out, r)
		}
	}
	return out
}

// Ping looks up every configured topic and subscription and reports all that are missing.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	required := requiredResources(c.cfg)
	if len(required) == 0 {
		return errors.New("no pubsub topics or subscriptions configured")
	}
	var errs error
	for _, r := range required {
		errs = multierr.Append(errs, c.lookup(ctx, r))
	}
	return errs
}

func (c *Client) lookup(ctx context.Context, r resource) error {
	full := c.resourceName(r.kind, r.name)
	var err error
	if r.kind == kindTopic {
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	} else {
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	}
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s does not exist", full)
	default:
		return fmt.Errorf("checking %s: %w", full, err)
	}
}

// Subscription returns a subscriber for an id or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	if full := c.resourceName(kindSubscription, name); full != "" {
		return c.client.Subscriber(full)
	}
	return nil
}

// NotificationSubscription returns the subscriber feeding the notification worker.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.NotificationSubscription)
}

// Publisher returns a publisher for a topic id or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	if full := c.resourceName(kindTopic, name); full != "" {
		return c.client.Publisher(full)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a bare id to projects/<project>/<kind>/<id>. Full names pass through.
func (c *Client) resourceName(kind, name string) string {
	name = strings.TrimSpace(name)
	if c == nil || name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	if c.projectID == "" {
		return ""
	}
	return "projects/" + c.projectID + "/" + kind + "/" + name
}
