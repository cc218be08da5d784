package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectHashRoundTrip(t *testing.T) {
	project := &Project{
		ID:    "p1",
		Name:  "Q3 Pipeline",
		Steps: []string{"New", "Qualified", "Meeting", "Closed"},
	}

	hash, err := ProjectToHash(project)
	require.NoError(t, err)

	// Steps survive as a single JSON field, order intact
	assert.Equal(t, `["New","Qualified","Meeting","Closed"]`, hash["steps"])

	stringHash := map[string]string{
		"id":    hash["id"].(string),
		"name":  hash["name"].(string),
		"steps": hash["steps"].(string),
	}
	restored, err := HashToProject(stringHash)
	require.NoError(t, err)
	assert.Equal(t, project, restored)
}

func TestHashToProject_MalformedSteps(t *testing.T) {
	_, err := HashToProject(map[string]string{"id": "p1", "steps": "{oops"})
	assert.ErrorContains(t, err, "failed to unmarshal steps")

	// Missing steps field yields an empty slice, not nil
	project, err := HashToProject(map[string]string{"id": "p1"})
	require.NoError(t, err)
	assert.NotNil(t, project.Steps)
	assert.Empty(t, project.Steps)
}

func TestLeadHashRoundTrip(t *testing.T) {
	lead := &Lead{
		ID:          "l1",
		Name:        "Alice Martin",
		Source:      "Ads",
		CurrentStep: "Qualified",
		AssignedTo:  "u2",
		Status:      StatusActive,
	}

	hash := LeadToHash(lead)
	stringHash := make(map[string]string, len(hash))
	for k, v := range hash {
		stringHash[k] = v.(string)
	}
	assert.Equal(t, lead, HashToLead(stringHash))
}

func TestUserHashRoundTrip(t *testing.T) {
	user := &User{ID: "u1", Name: "Sam", Role: RoleCloser}

	hash := UserToHash(user)
	stringHash := make(map[string]string, len(hash))
	for k, v := range hash {
		stringHash[k] = v.(string)
	}
	assert.Equal(t, user, HashToUser(stringHash))
}
