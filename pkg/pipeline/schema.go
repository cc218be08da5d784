package pipeline

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to enable
// multiple Leadflow instances to safely coexist on a single Redis server.
//
// Key pattern: leadflow:{instance_name}:project:{project_id}:{entity}:{id}
// Channel pattern: leadflow:{instance_name}:project:{project_id}:lead_events

// ProjectKey returns the Redis key for a project hash.
// Pattern: leadflow:{instance_name}:project:{project_id}
func ProjectKey(instanceName, projectID string) string {
	return fmt.Sprintf("leadflow:%s:project:%s", instanceName, projectID)
}

// DefaultProjectKey returns the Redis key holding the instance's default
// project ID. The demo bootstrap endpoint serves this project.
// Pattern: leadflow:{instance_name}:default_project
func DefaultProjectKey(instanceName string) string {
	return fmt.Sprintf("leadflow:%s:default_project", instanceName)
}

// LeadKey returns the Redis key for a lead hash.
// Pattern: leadflow:{instance_name}:project:{project_id}:lead:{lead_id}
func LeadKey(instanceName, projectID, leadID string) string {
	return fmt.Sprintf("leadflow:%s:project:%s:lead:%s", instanceName, projectID, leadID)
}

// ProjectLeadsKey returns the Redis key for the set of lead IDs in a project.
// Pattern: leadflow:{instance_name}:project:{project_id}:leads
func ProjectLeadsKey(instanceName, projectID string) string {
	return fmt.Sprintf("leadflow:%s:project:%s:leads", instanceName, projectID)
}

// UserKey returns the Redis key for a user hash.
// Pattern: leadflow:{instance_name}:project:{project_id}:user:{user_id}
func UserKey(instanceName, projectID, userID string) string {
	return fmt.Sprintf("leadflow:%s:project:%s:user:%s", instanceName, projectID, userID)
}

// ProjectUsersKey returns the Redis key for the list of user IDs in a project.
// A list (not a set) so the roster keeps its creation order, which the board
// uses for stable lane numbering.
// Pattern: leadflow:{instance_name}:project:{project_id}:users
func ProjectUsersKey(instanceName, projectID string) string {
	return fmt.Sprintf("leadflow:%s:project:%s:users", instanceName, projectID)
}

// LeadEventsChannel returns the Pub/Sub channel name for a project's lead events.
// Every mutation applied through the pipeline client is published here.
// Pattern: leadflow:{instance_name}:project:{project_id}:lead_events
func LeadEventsChannel(instanceName, projectID string) string {
	return fmt.Sprintf("leadflow:%s:project:%s:lead_events", instanceName, projectID)
}
