// Package notify computes who must be told about each state-changing
// event and what the message says. Recipient computation runs
// synchronously inside the triggering transaction; the resulting email
// deliveries are dispatched after commit, best-effort.
package notify

import (
	"context"
	"fmt"

	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/pkg/mail"
)

// Directory is the read-only user lookup the router fans out against.
type Directory interface {
	// ActiveByRole lists active users with the given role; a non-empty
	// department narrows the result to that department.
	ActiveByRole(ctx context.Context, role models.Role, department string) ([]models.User, error)
	// ActiveInDepartments lists active users whose department is in the
	// given set; a nil set means every active user.
	ActiveInDepartments(ctx context.Context, departments []string) ([]models.User, error)
}

// Fanout is the computed result of one event: in-platform notification
// rows to persist with the transition, and the emails to dispatch once
// it commits.
type Fanout struct {
	Notifications []models.Notification
	Emails        []mail.Message
}

// Empty reports whether no recipient was computed. An empty fan-out is
// not an error; the triggering action still succeeds.
func (f *Fanout) Empty() bool {
	return len(f.Notifications) == 0
}

// Router computes recipient sets per event. It never delivers anything
// itself.
type Router struct {
	directory   Directory
	frontendURL string
}

// NewRouter builds a Router over the given user directory.
func NewRouter(directory Directory, frontendURL string) *Router {
	return &Router{directory: directory, frontendURL: frontendURL}
}

// CircularPublished targets all active users in the circular's target
// departments (or everyone for "all"), excluding the publisher.
func (r *Router) CircularPublished(ctx context.Context, circular *models.Circular, publisher *models.User) (*Fanout, error) {
	recipients, err := r.directory.ActiveInDepartments(ctx, circular.TargetList())
	if err != nil {
		return nil, fmt.Errorf("resolve circular audience: %w", err)
	}

	deadline := "No deadline set."
	if circular.Deadline != nil {
		deadline = "Deadline: " + circular.Deadline.Format("02 Jan 2006")
	}
	title := fmt.Sprintf("New Circular: %s", circular.Title)
	message := fmt.Sprintf("%s circular published. %s", circular.Category, deadline)

	return r.build(recipients, publisher.ID, title, message, models.NotificationTypeCircular, &circular.ID), nil
}

// SubmissionCreated fans out by the submitter's role:
// faculty → hod(s) of the same department + all principals (never admin),
// hod → all admins + all principals + faculty of own department,
// principal → all admins + all hod(s),
// admin → all principals + all hod(s) + all faculty.
func (r *Router) SubmissionCreated(ctx context.Context, submitter *models.User, circular *models.Circular) (*Fanout, error) {
	type roleQuery struct {
		role       models.Role
		department string
	}

	var groups []roleQuery
	switch submitter.Role {
	case models.RoleFaculty:
		groups = []roleQuery{
			{models.RoleHOD, submitter.DepartmentOrEmpty()},
			{models.RolePrincipal, ""},
		}
	case models.RoleHOD:
		groups = []roleQuery{
			{models.RoleAdmin, ""},
			{models.RolePrincipal, ""},
			{models.RoleFaculty, submitter.DepartmentOrEmpty()},
		}
	case models.RolePrincipal:
		groups = []roleQuery{
			{models.RoleAdmin, ""},
			{models.RoleHOD, ""},
		}
	default:
		// Admin acting as a compliance subject: an unusual but supported
		// workflow, fanning out to every other role.
		groups = []roleQuery{
			{models.RolePrincipal, ""},
			{models.RoleHOD, ""},
			{models.RoleFaculty, ""},
		}
	}

	var recipients []models.User
	for _, g := range groups {
		users, err := r.directory.ActiveByRole(ctx, g.role, g.department)
		if err != nil {
			return nil, fmt.Errorf("resolve submission audience: %w", err)
		}
		recipients = append(recipients, users...)
	}

	message := fmt.Sprintf("%s (%s) submitted proof for %q", submitter.Name, submitterScope(submitter), circular.Title)
	return r.build(recipients, submitter.ID, "New Submission", message, models.NotificationTypeSubmission, &circular.ID), nil
}

// SubmissionReviewed targets the submitter alone with the outcome and
// the reviewer's optional remarks.
func (r *Router) SubmissionReviewed(submitter *models.User, circular *models.Circular, action models.ReviewAction, remarks string) *Fanout {
	outcome := "approved"
	if action == models.ReviewActionReject {
		outcome = "rejected"
	}
	message := fmt.Sprintf("Your submission for %q has been %s.", circular.Title, outcome)
	if remarks != "" {
		message += " Remarks: " + remarks
	}
	title := "Submission Approved"
	if action == models.ReviewActionReject {
		title = "Submission Rejected"
	}

	return r.build([]models.User{*submitter}, "", title, message, models.NotificationTypeSubmission, &circular.ID)
}

// UserRegistered targets all admins when an account self-registers.
func (r *Router) UserRegistered(ctx context.Context, account *models.User) (*Fanout, error) {
	admins, err := r.directory.ActiveByRole(ctx, models.RoleAdmin, "")
	if err != nil {
		return nil, fmt.Errorf("resolve admins: %w", err)
	}
	message := fmt.Sprintf("%s (%s) registered as %s", account.Name, account.Email, account.Role)
	return r.build(admins, account.ID, "New User Registered", message, models.NotificationTypeSystem, nil), nil
}

// DirectMessage targets the addressed user of a direct chat message.
func (r *Router) DirectMessage(sender, receiver *models.User, text string) *Fanout {
	preview := text
	if len(preview) > 200 {
		preview = preview[:200]
	}
	if preview == "" {
		preview = fmt.Sprintf("%s sent a file", sender.Name)
	}
	title := fmt.Sprintf("New message from %s", sender.Name)
	return r.build([]models.User{*receiver}, sender.ID, title, preview, models.NotificationTypeChat, nil)
}

// build assembles notification rows and email deliveries for the
// recipient set, excluding the actor from its own fan-out.
func (r *Router) build(recipients []models.User, actorID, title, message string, typ models.NotificationType, circularID *string) *Fanout {
	fanout := &Fanout{}
	seen := make(map[string]bool, len(recipients))
	for _, recipient := range recipients {
		if recipient.ID == actorID || seen[recipient.ID] {
			continue
		}
		seen[recipient.ID] = true

		fanout.Notifications = append(fanout.Notifications, models.Notification{
			UserID:     recipient.ID,
			Title:      title,
			Message:    message,
			Type:       typ,
			CircularID: circularID,
		})
		fanout.Emails = append(fanout.Emails, mail.NotificationMessage(recipient.Email, recipient.Name, title, message, r.frontendURL))
	}
	return fanout
}

func submitterScope(u *models.User) string {
	if dept := u.DepartmentOrEmpty(); dept != "" {
		return dept
	}
	return string(u.Role)
}
