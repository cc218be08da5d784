// Package seed populates a Leadflow instance with a demo project: a step
// sequence, a small team of setters and closers, and a batch of leads spread
// across sources and steps.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/dyluth/leadflow/pkg/pipeline"
)

// Options controls what gets seeded.
type Options struct {
	ProjectName string
	Steps       []string
	Sources     []string
	Leads       int
	Setters     int
	Closers     int
}

// firstNames and lastNames feed the demo lead generator.
var firstNames = []string{
	"Alice", "Bruno", "Chloe", "David", "Emma", "Felix", "Gina", "Hugo",
	"Ines", "Jules", "Karim", "Lea", "Marc", "Nadia", "Oscar", "Paula",
}

var lastNames = []string{
	"Martin", "Bernard", "Dubois", "Thomas", "Robert", "Richard", "Petit",
	"Durand", "Leroy", "Moreau", "Simon", "Laurent", "Lefebvre", "Michel",
}

var teamNames = []string{
	"Sam", "Alex", "Jo", "Charlie", "Max", "Robin", "Noa", "Sacha",
}

// Project seeds a full demo project and returns its ID. The new project
// becomes the instance's default project served by the bootstrap endpoint.
func Project(ctx context.Context, client *pipeline.Client, opts Options) (string, error) {
	if len(opts.Steps) == 0 {
		return "", fmt.Errorf("seed requires at least one step")
	}

	project := &pipeline.Project{
		ID:    uuid.New().String(),
		Name:  opts.ProjectName,
		Steps: opts.Steps,
	}
	if project.Name == "" {
		project.Name = "Leadflow Demo"
	}

	if err := client.CreateProject(ctx, project); err != nil {
		return "", fmt.Errorf("failed to create project: %w", err)
	}

	users, err := seedUsers(ctx, client, project.ID, opts.Setters, opts.Closers)
	if err != nil {
		return "", err
	}

	if err := seedLeads(ctx, client, project, users, opts); err != nil {
		return "", err
	}

	return project.ID, nil
}

func seedUsers(ctx context.Context, client *pipeline.Client, projectID string, setters, closers int) ([]pipeline.User, error) {
	var users []pipeline.User

	nameAt := func(i int) string {
		return teamNames[i%len(teamNames)]
	}

	for i := 0; i < setters; i++ {
		users = append(users, pipeline.User{
			ID:   uuid.New().String(),
			Name: fmt.Sprintf("%s (setter)", nameAt(i)),
			Role: pipeline.RoleSetter,
		})
	}
	for i := 0; i < closers; i++ {
		users = append(users, pipeline.User{
			ID:   uuid.New().String(),
			Name: fmt.Sprintf("%s (closer)", nameAt(setters+i)),
			Role: pipeline.RoleCloser,
		})
	}

	for i := range users {
		if err := client.PutUser(ctx, projectID, &users[i]); err != nil {
			return nil, fmt.Errorf("failed to seed user: %w", err)
		}
	}

	return users, nil
}

func seedLeads(ctx context.Context, client *pipeline.Client, project *pipeline.Project, users []pipeline.User, opts Options) error {
	sources := opts.Sources
	if len(sources) == 0 {
		sources = []string{"Ads", "Referral", "Webinar", "Cold Call"}
	}

	for i := 0; i < opts.Leads; i++ {
		step := project.Steps[rand.IntN(len(project.Steps))]

		lead := pipeline.Lead{
			ID:          uuid.New().String(),
			Name:        fmt.Sprintf("%s %s", firstNames[rand.IntN(len(firstNames))], lastNames[rand.IntN(len(lastNames))]),
			Source:      sources[rand.IntN(len(sources))],
			CurrentStep: step,
			Status:      pipeline.StatusForStep(project.Steps, step),
		}

		// Roughly two thirds of leads start assigned
		if len(users) > 0 && rand.IntN(3) != 0 {
			lead.AssignedTo = users[rand.IntN(len(users))].ID
		}

		if err := client.PutLead(ctx, project.ID, &lead); err != nil {
			return fmt.Errorf("failed to seed lead: %w", err)
		}
	}

	return nil
}
