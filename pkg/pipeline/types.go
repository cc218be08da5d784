package pipeline

import (
	"fmt"
)

// Project represents a sales pipeline: an ordered sequence of steps that leads
// move through. The step sequence is fixed once the project is created; its
// ordering is significant (column order, and "last step = success" semantics).
type Project struct {
	ID    string   `json:"id"`    // UUID - unique identifier for this project
	Name  string   `json:"name"`  // Display name
	Steps []string `json:"steps"` // Ordered pipeline steps, e.g. ["New", "Qualified", "Meeting", "Closed"]
}

// Role describes how a team member participates in the pipeline.
// Roles drive the group-by-setter and group-by-closer board views.
type Role string

const (
	// RoleSetter qualifies incoming leads and hands them to closers
	RoleSetter Role = "setter"

	// RoleCloser receives qualified leads and closes the deals
	RoleCloser Role = "closer"

	// RoleOther covers admins, viewers and analysts - never a lane owner
	RoleOther Role = "other"
)

// User represents a team member on a project. Users are immutable for the
// duration of a session; the engine only uses them for grouping and labeling.
type User struct {
	ID   string `json:"id"`   // Unique identifier within the project
	Name string `json:"name"` // Display name
	Role Role   `json:"role"` // setter, closer or other
}

// Status is the lifecycle state of a lead.
type Status string

const (
	// StatusActive means the lead is still moving through the pipeline
	StatusActive Status = "active"

	// StatusWon means the lead reached the final pipeline step
	StatusWon Status = "won"

	// StatusLost means the lead was explicitly dropped
	StatusLost Status = "lost"
)

// Lead represents a single prospect moving through the pipeline.
// CurrentStep must always be a member of the project's step sequence;
// AssignedTo is empty for unassigned leads and otherwise names a User ID.
type Lead struct {
	ID          string `json:"id"`           // Unique identifier within the project
	Name        string `json:"name"`         // Prospect name
	Source      string `json:"source"`       // Acquisition channel, e.g. "Ads", "Referral"; may be empty
	CurrentStep string `json:"current_step"` // Current pipeline step
	AssignedTo  string `json:"assigned_to"`  // User ID of the assignee, empty when unassigned
	Status      Status `json:"status"`       // active, won or lost
}

// Snapshot is the full project state fetched once per session before streaming
// begins: the ordered step sequence, the team, and every lead.
type Snapshot struct {
	ProjectID string `json:"project_id"`
	Steps     []string `json:"steps"`
	Users     []User   `json:"users"`
	Leads     []Lead   `json:"leads"`
}

// Validate checks if the Project has valid field values.
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("project ID cannot be empty")
	}

	if len(p.Steps) == 0 {
		return fmt.Errorf("project must define at least one step")
	}

	seen := make(map[string]bool, len(p.Steps))
	for i, step := range p.Steps {
		if step == "" {
			return fmt.Errorf("empty step name at index %d", i)
		}
		if seen[step] {
			return fmt.Errorf("duplicate step name: %q", step)
		}
		seen[step] = true
	}

	return nil
}

// Validate checks if the Role is a valid enum value.
func (r Role) Validate() error {
	switch r {
	case RoleSetter, RoleCloser, RoleOther:
		return nil
	default:
		return fmt.Errorf("unknown role: %q", r)
	}
}

// Validate checks if the User has valid field values.
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	if u.Name == "" {
		return fmt.Errorf("user name cannot be empty")
	}

	if err := u.Role.Validate(); err != nil {
		return fmt.Errorf("invalid role: %w", err)
	}

	return nil
}

// Validate checks if the Status is a valid enum value.
func (s Status) Validate() error {
	switch s {
	case StatusActive, StatusWon, StatusLost:
		return nil
	default:
		return fmt.Errorf("unknown status: %q", s)
	}
}

// Validate checks if the Lead has valid field values.
// Lead IDs are free-form strings (CSV imports bring external identifiers),
// so only presence is enforced.
func (l *Lead) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("lead ID cannot be empty")
	}

	if l.Name == "" {
		return fmt.Errorf("lead name cannot be empty")
	}

	if l.CurrentStep == "" {
		return fmt.Errorf("lead current_step cannot be empty")
	}

	if err := l.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	return nil
}

// NextStep returns the step that follows current in the ordered sequence.
// When current is the last step (or is not a member of the sequence) the last
// step is returned, so repeated advances are stable. This is the default
// successor policy for advance requests that do not name an explicit target.
func NextStep(steps []string, current string) string {
	if len(steps) == 0 {
		return current
	}

	for i, step := range steps {
		if step == current {
			if i+1 < len(steps) {
				return steps[i+1]
			}
			return steps[len(steps)-1]
		}
	}

	return steps[len(steps)-1]
}

// StatusForStep derives the lead status implied by occupying a step:
// the final step means the deal is won, every other step means active.
// An explicit lost status is never derived, only set by users.
func StatusForStep(steps []string, step string) Status {
	if len(steps) > 0 && step == steps[len(steps)-1] {
		return StatusWon
	}
	return StatusActive
}
