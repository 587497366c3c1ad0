package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence"
	"gopkg.in/yaml.v3"
)

// SeedFile lists the documents other services own, for local development.
type SeedFile struct {
	Organizations []*models.Organization `yaml:"organizations"`
	Users         []*models.User         `yaml:"users"`
	Workflows     []*models.Workflow     `yaml:"workflows"`
}

type SeedResult struct {
	Organizations int
	Users         int
	Workflows     int
}

// Seed writes every document of the YAML seed file in r.
func Seed(ctx context.Context, p persistence.Persistence, r io.Reader) (SeedResult, error) {
	var (
		file   SeedFile
		result SeedResult
	)

	err := yaml.NewDecoder(r).Decode(&file)
	if err != nil {
		return result, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for _, organization := range file.Organizations {
		err = p.Organizations().SaveOrganization(ctx, organization)
		if err != nil {
			return result, fmt.Errorf("failed to save organization %s: %w", organization.ID, err)
		}

		result.Organizations++
	}

	for _, user := range file.Users {
		err = p.Users().SaveUser(ctx, user)
		if err != nil {
			return result, fmt.Errorf("failed to save user %s: %w", user.ID, err)
		}

		result.Users++
	}

	for _, workflow := range file.Workflows {
		err = p.Workflows().SaveWorkflow(ctx, workflow)
		if err != nil {
			return result, fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
		}

		result.Workflows++
	}

	return result, nil
}
