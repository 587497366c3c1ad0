// Package notify emails the people responsible for a workflow when one of its runs fails.
package notify

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence"
	"github.com/zachsents/minus-sub000/pkg/template"
)

var (
	//go:embed templates/run_failed.txt.tmpl
	runFailedText string

	//go:embed templates/run_failed.html.tmpl
	runFailedHTML string
)

// Email is one message with every recipient on it.
type Email struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers an email.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// Recipients returns the ids of the users that get failure notifications for org.
// The owner is included when SendErrorNotificationsToOwner is set, members and admins when
// SendErrorNotificationsToMembers is set. Each id appears once, in that order.
func Recipients(org *models.Organization) []string {
	var ids []string

	add := func(candidates ...string) {
		for _, id := range candidates {
			if id != "" && !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}

	if org.SendErrorNotificationsToOwner {
		add(org.Owner)
	}

	if org.SendErrorNotificationsToMembers {
		add(org.Members...)
		add(org.Admins...)
	}

	return ids
}

type Notifier struct {
	persistence persistence.Persistence
	sender      Sender
	logger      *slog.Logger
}

func NewNotifier(logger *slog.Logger, p persistence.Persistence, sender Sender) *Notifier {
	return &Notifier{
		persistence: p,
		sender:      sender,
		logger:      logger.With("module", "failure_notifier"),
	}
}

type runFailedData struct {
	WorkflowName string
	RunID        string
	Reason       string
	FailedAt     *time.Time
	Errors       []string
}

// NotifyRunFailed sends one email about run to every recipient of the workflow's
// organization. A missing workflow or organization is returned as a not-found error.
// Nothing is sent when the organization has no recipients with an email address.
func (n *Notifier) NotifyRunFailed(ctx context.Context, run *models.WorkflowRun) error {
	workflow, err := n.persistence.Workflows().WorkflowByID(ctx, run.Workflow)
	if err != nil {
		return err
	}

	org, err := n.persistence.Organizations().OrganizationByID(ctx, workflow.Organization)
	if err != nil {
		return err
	}

	ids := Recipients(org)
	if len(ids) == 0 {
		n.logger.InfoContext(ctx, "Organization has no failure notification recipients", "organization_id", org.ID, "run_id", run.ID)

		return nil
	}

	users, err := n.persistence.Users().UsersByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to look up recipients: %w", err)
	}

	to := make([]string, 0, len(users))

	for _, user := range users {
		if user.Email != "" && !slices.Contains(to, user.Email) {
			to = append(to, user.Email)
		}
	}

	if len(to) == 0 {
		n.logger.WarnContext(ctx, "No recipient has an email address", "organization_id", org.ID, "run_id", run.ID)

		return nil
	}

	email, err := n.render(workflow, run)
	if err != nil {
		return err
	}

	email.To = to

	err = n.sender.Send(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to send failure email for run %s: %w", run.ID, err)
	}

	n.logger.InfoContext(ctx, "Sent failure email", "run_id", run.ID, "recipients", len(to))

	return nil
}

func (n *Notifier) render(workflow *models.Workflow, run *models.WorkflowRun) (Email, error) {
	name := workflow.Name
	if name == "" {
		name = workflow.ID
	}

	data := runFailedData{
		WorkflowName: name,
		RunID:        run.ID,
		Reason:       run.FailureReason,
		FailedAt:     run.FailedAt,
	}

	for _, runErr := range run.Errors {
		data.Errors = append(data.Errors, runErr.Message)
	}

	text, err := template.Render("run_failed.txt", runFailedText, data)
	if err != nil {
		return Email{}, err
	}

	html, err := template.RenderHTML("run_failed.html", runFailedHTML, data)
	if err != nil {
		return Email{}, err
	}

	return Email{
		Subject: fmt.Sprintf("Workflow %q failed", name),
		Text:    text,
		HTML:    html,
	}, nil
}
