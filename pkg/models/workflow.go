package models

import "time"

// Workflow is the part of a workflow document the run engine reads.
type Workflow struct {
	ID           string    `json:"id"           yaml:"id"`
	Name         string    `json:"name"         yaml:"name"`
	Organization string    `json:"organization" yaml:"organization"`
	CreatedAt    time.Time `json:"createdAt"    yaml:"createdAt,omitempty"`
}

// Organization carries the failure notification policy for its workflows.
type Organization struct {
	ID                              string   `json:"id"                              yaml:"id"`
	Name                            string   `json:"name"                            yaml:"name"`
	Owner                           string   `json:"owner"                           yaml:"owner"`
	Members                         []string `json:"members,omitempty"               yaml:"members,omitempty"`
	Admins                          []string `json:"admins,omitempty"                yaml:"admins,omitempty"`
	SendErrorNotificationsToOwner   bool     `json:"sendErrorNotificationsToOwner"   yaml:"sendErrorNotificationsToOwner"`
	SendErrorNotificationsToMembers bool     `json:"sendErrorNotificationsToMembers" yaml:"sendErrorNotificationsToMembers"`
}

type User struct {
	ID          string `json:"id"                    yaml:"id"`
	Email       string `json:"email"                 yaml:"email"`
	DisplayName string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
}
