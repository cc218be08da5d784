package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the pipeline.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new pipeline client for the specified instance.
// The client automatically namespaces all keys and channels with the instance name.
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CreateProject writes a project to Redis and marks it as the instance's
// default project. Validates the project before writing.
func (c *Client) CreateProject(ctx context.Context, p *Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}

	hash, err := ProjectToHash(p)
	if err != nil {
		return fmt.Errorf("failed to serialize project: %w", err)
	}

	key := ProjectKey(c.instanceName, p.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write project to Redis: %w", err)
	}

	if err := c.rdb.Set(ctx, DefaultProjectKey(c.instanceName), p.ID, 0).Err(); err != nil {
		return fmt.Errorf("failed to set default project: %w", err)
	}

	return nil
}

// GetProject retrieves a project by ID.
// Returns (nil, redis.Nil) if the project doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	key := ProjectKey(c.instanceName, projectID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read project from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	project, err := HashToProject(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize project: %w", err)
	}

	return project, nil
}

// DefaultProjectID returns the instance's default project ID.
// Returns ("", redis.Nil) if no default project has been set.
func (c *Client) DefaultProjectID(ctx context.Context) (string, error) {
	projectID, err := c.rdb.Get(ctx, DefaultProjectKey(c.instanceName)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", redis.Nil
		}
		return "", fmt.Errorf("failed to read default project: %w", err)
	}
	return projectID, nil
}

// PutLead writes a lead to Redis and registers it in the project's lead set.
// Validates the lead before writing. Does not publish an event - seeding and
// imports are bulk operations, consumers pick them up via the next snapshot.
func (c *Client) PutLead(ctx context.Context, projectID string, lead *Lead) error {
	if err := lead.Validate(); err != nil {
		return fmt.Errorf("invalid lead: %w", err)
	}

	key := LeadKey(c.instanceName, projectID, lead.ID)
	if err := c.rdb.HSet(ctx, key, LeadToHash(lead)).Err(); err != nil {
		return fmt.Errorf("failed to write lead to Redis: %w", err)
	}

	setKey := ProjectLeadsKey(c.instanceName, projectID)
	if err := c.rdb.SAdd(ctx, setKey, lead.ID).Err(); err != nil {
		return fmt.Errorf("failed to register lead in project: %w", err)
	}

	return nil
}

// GetLead retrieves a lead by ID.
// Returns (nil, redis.Nil) if the lead doesn't exist.
func (c *Client) GetLead(ctx context.Context, projectID, leadID string) (*Lead, error) {
	key := LeadKey(c.instanceName, projectID, leadID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read lead from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	return HashToLead(hashData), nil
}

// ListLeads retrieves all leads in a project, sorted by lead ID for a
// deterministic order across calls.
func (c *Client) ListLeads(ctx context.Context, projectID string) ([]Lead, error) {
	setKey := ProjectLeadsKey(c.instanceName, projectID)

	leadIDs, err := c.rdb.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list project leads: %w", err)
	}

	// SMembers order is undefined
	sort.Strings(leadIDs)

	leads := make([]Lead, 0, len(leadIDs))
	for _, leadID := range leadIDs {
		lead, err := c.GetLead(ctx, projectID, leadID)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		leads = append(leads, *lead)
	}

	return leads, nil
}

// PutUser writes a user to Redis and appends it to the project's roster.
// Roster order is preserved - the board relies on it for stable lane numbering.
func (c *Client) PutUser(ctx context.Context, projectID string, user *User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	key := UserKey(c.instanceName, projectID, user.ID)
	if err := c.rdb.HSet(ctx, key, UserToHash(user)).Err(); err != nil {
		return fmt.Errorf("failed to write user to Redis: %w", err)
	}

	listKey := ProjectUsersKey(c.instanceName, projectID)
	if err := c.rdb.RPush(ctx, listKey, user.ID).Err(); err != nil {
		return fmt.Errorf("failed to register user in project: %w", err)
	}

	return nil
}

// GetUser retrieves a user by ID.
// Returns (nil, redis.Nil) if the user doesn't exist.
func (c *Client) GetUser(ctx context.Context, projectID, userID string) (*User, error) {
	key := UserKey(c.instanceName, projectID, userID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read user from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	return HashToUser(hashData), nil
}

// ListUsers retrieves all users in a project, in roster (creation) order.
func (c *Client) ListUsers(ctx context.Context, projectID string) ([]User, error) {
	listKey := ProjectUsersKey(c.instanceName, projectID)

	userIDs, err := c.rdb.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list project users: %w", err)
	}

	users := make([]User, 0, len(userIDs))
	for _, userID := range userIDs {
		user, err := c.GetUser(ctx, projectID, userID)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		users = append(users, *user)
	}

	return users, nil
}

// Snapshot assembles the full project state: steps, users and leads.
// This is the one-time bootstrap payload the visualization engine consumes
// before attaching to the event stream.
func (c *Client) Snapshot(ctx context.Context, projectID string) (*Snapshot, error) {
	project, err := c.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	users, err := c.ListUsers(ctx, projectID)
	if err != nil {
		return nil, err
	}

	leads, err := c.ListLeads(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		ProjectID: projectID,
		Steps:     project.Steps,
		Users:     users,
		Leads:     leads,
	}, nil
}

// AdvanceLead moves a lead to the target step, updates its status, and
// publishes a lead_advanced event. An empty toStep applies the default
// successor policy: the next step in sequence, staying put on the last step.
// Returns the applied event so callers can log or relay it.
func (c *Client) AdvanceLead(ctx context.Context, projectID, leadID, toStep string) (Event, error) {
	project, err := c.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	lead, err := c.GetLead(ctx, projectID, leadID)
	if err != nil {
		return nil, err
	}

	if toStep == "" {
		toStep = NextStep(project.Steps, lead.CurrentStep)
	} else if !containsString(project.Steps, toStep) {
		return nil, fmt.Errorf("unknown step %q for project %s", toStep, projectID)
	}

	lead.CurrentStep = toStep
	lead.Status = StatusForStep(project.Steps, toStep)

	key := LeadKey(c.instanceName, projectID, leadID)
	if err := c.rdb.HSet(ctx, key, LeadToHash(lead)).Err(); err != nil {
		return nil, fmt.Errorf("failed to update lead in Redis: %w", err)
	}

	event := LeadAdvanced{Lead: leadID, To: toStep}
	if err := c.publishEvent(ctx, projectID, event); err != nil {
		return nil, err
	}

	return event, nil
}

// AssignLead assigns a lead to a user (or unassigns it when toUser is empty)
// and publishes a lead_assigned event. Returns the applied event.
func (c *Client) AssignLead(ctx context.Context, projectID, leadID, toUser string) (Event, error) {
	lead, err := c.GetLead(ctx, projectID, leadID)
	if err != nil {
		return nil, err
	}

	if toUser != "" {
		if _, err := c.GetUser(ctx, projectID, toUser); err != nil {
			if IsNotFound(err) {
				return nil, fmt.Errorf("unknown user %q for project %s", toUser, projectID)
			}
			return nil, err
		}
	}

	lead.AssignedTo = toUser

	key := LeadKey(c.instanceName, projectID, leadID)
	if err := c.rdb.HSet(ctx, key, LeadToHash(lead)).Err(); err != nil {
		return nil, fmt.Errorf("failed to update lead in Redis: %w", err)
	}

	event := LeadAssigned{Lead: leadID, ToUser: toUser}
	if err := c.publishEvent(ctx, projectID, event); err != nil {
		return nil, err
	}

	return event, nil
}

// AdvanceRandomLead advances a randomly chosen lead that has not yet reached
// the final step. This powers the demo's periodic stimulus. Returns (nil, nil)
// when every lead has already reached the final step.
func (c *Client) AdvanceRandomLead(ctx context.Context, projectID string) (Event, error) {
	project, err := c.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	leads, err := c.ListLeads(ctx, projectID)
	if err != nil {
		return nil, err
	}

	lastStep := project.Steps[len(project.Steps)-1]

	var eligible []string
	for _, lead := range leads {
		if lead.CurrentStep != lastStep && lead.Status != StatusLost {
			eligible = append(eligible, lead.ID)
		}
	}

	if len(eligible) == 0 {
		return nil, nil
	}

	leadID := eligible[rand.IntN(len(eligible))]
	return c.AdvanceLead(ctx, projectID, leadID, "")
}

// publishEvent encodes an event and publishes it on the project's lead events
// channel.
func (c *Client) publishEvent(ctx context.Context, projectID string, event Event) error {
	data, err := EncodeEvent(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	channel := LeadEventsChannel(c.instanceName, projectID)
	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish lead event: %w", err)
	}

	return nil
}

// Subscription represents an active Pub/Sub subscription to lead events.
// Caller must call Close() when done to clean up resources.
// Subscriptions deliver typed events via the Events() channel.
type Subscription struct {
	events <-chan Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of lead events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors are malformed messages and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeLeadEvents subscribes to lead events for a project.
// Returns a Subscription that delivers typed events.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// Messages with an unknown type tag are silently skipped; malformed messages
// are surfaced on the Errors() channel and skipped.
func (c *Client) SubscribeLeadEvents(ctx context.Context, projectID string) (*Subscription, error) {
	channel := LeadEventsChannel(c.instanceName, projectID)
	pubsub := c.rdb.Subscribe(ctx, channel)

	// Wait for the subscribe confirmation so events published immediately
	// after this call returns cannot be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to lead events: %w", err)
	}

	eventsChan := make(chan Event, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				event, err := DecodeEvent([]byte(msg.Payload))
				if err != nil {
					if IsUnknownEventType(err) {
						// Outside the closed event set - not our concern
						continue
					}
					select {
					case errorsChan <- fmt.Errorf("failed to decode lead event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
// Use this to check if GetProject, GetLead, or GetUser returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
