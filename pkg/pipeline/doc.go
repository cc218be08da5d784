// Package pipeline provides type-safe Go definitions and Redis schema patterns
// for the Leadflow sales pipeline.
//
// # Overview
//
// The pipeline is the shared state system where all Leadflow components (demo
// server, CLI, visualization engine) interact via well-defined data structures
// stored in Redis. Leads move through the ordered steps of a project; every
// mutation is published as an event on a per-project Pub/Sub channel so all
// connected viewers converge on the same state without polling.
//
// # Core Concepts
//
// Projects define the ordered step sequence leads move through. The sequence is
// fixed for a session and its order is significant: it defines board column
// order and the "last step = success" semantics.
//
// Leads are the unit of state. Each lead occupies exactly one step, may be
// assigned to a user, and carries its acquisition source for grouping.
//
// Events are incremental, idempotent mutations: lead_advanced moves a lead to
// an absolute target step, lead_assigned replaces its assignee. Events carry
// absolute values rather than deltas, so duplicate delivery is harmless.
//
// # Multi-Instance Support
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to enable
// multiple Leadflow instances to safely coexist on a single Redis server.
//
// # Usage Example
//
//	import "github.com/dyluth/leadflow/pkg/pipeline"
//
//	client, err := pipeline.NewClient(&redis.Options{Addr: "localhost:6379"}, "demo")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Fetch the bootstrap snapshot, then follow the live stream
//	snap, err := client.Snapshot(ctx, projectID)
//	sub, err := client.SubscribeLeadEvents(ctx, projectID)
//	defer sub.Close()
//	for event := range sub.Events() {
//		// reconcile event into local state
//	}
//
// # Redis Schema
//
// Projects: leadflow:{instance}:project:{project_id}
// Leads: leadflow:{instance}:project:{project_id}:lead:{lead_id}
// Lead set: leadflow:{instance}:project:{project_id}:leads
// Users: leadflow:{instance}:project:{project_id}:user:{user_id}
// User roster: leadflow:{instance}:project:{project_id}:users
// Default project: leadflow:{instance}:default_project
//
// Pub/Sub channel: leadflow:{instance}:project:{project_id}:lead_events
//
// # Design Principles
//
// - Type Safety: All data structures have strong typing with validation methods
// - Idempotency: Events carry absolute values; re-delivery cannot corrupt state
// - Isolation: Instance namespacing prevents cross-instance interference
// - Closed event set: unknown wire tags are rejected at the decode boundary
package pipeline
