package pipeline

import (
	"encoding/json"
	"fmt"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). The steps array is
// JSON-encoded into a single hash field. This provides a balance between
// queryability (individual fields) and flexibility (ordered structures).

// ProjectToHash converts a Project struct to a Redis hash format.
// The ordered steps array is JSON-encoded.
func ProjectToHash(p *Project) (map[string]interface{}, error) {
	stepsJSON, err := json.Marshal(p.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal steps: %w", err)
	}

	return map[string]interface{}{
		"id":    p.ID,
		"name":  p.Name,
		"steps": string(stepsJSON),
	}, nil
}

// HashToProject converts a Redis hash to a Project struct.
func HashToProject(hash map[string]string) (*Project, error) {
	var steps []string
	if stepsJSON := hash["steps"]; stepsJSON != "" {
		if err := json.Unmarshal([]byte(stepsJSON), &steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
		}
	}

	if steps == nil {
		steps = []string{}
	}

	return &Project{
		ID:    hash["id"],
		Name:  hash["name"],
		Steps: steps,
	}, nil
}

// LeadToHash converts a Lead struct to a Redis hash format.
func LeadToHash(l *Lead) map[string]interface{} {
	return map[string]interface{}{
		"id":           l.ID,
		"name":         l.Name,
		"source":       l.Source,
		"current_step": l.CurrentStep,
		"assigned_to":  l.AssignedTo,
		"status":       string(l.Status),
	}
}

// HashToLead converts a Redis hash to a Lead struct.
func HashToLead(hash map[string]string) *Lead {
	return &Lead{
		ID:          hash["id"],
		Name:        hash["name"],
		Source:      hash["source"],
		CurrentStep: hash["current_step"],
		AssignedTo:  hash["assigned_to"],
		Status:      Status(hash["status"]),
	}
}

// UserToHash converts a User struct to a Redis hash format.
func UserToHash(u *User) map[string]interface{} {
	return map[string]interface{}{
		"id":   u.ID,
		"name": u.Name,
		"role": string(u.Role),
	}
}

// HashToUser converts a Redis hash to a User struct.
func HashToUser(hash map[string]string) *User {
	return &User{
		ID:   hash["id"],
		Name: hash["name"],
		Role: Role(hash["role"]),
	}
}
