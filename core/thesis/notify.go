package thesis

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/trezcool/thesisflow/core"
	"github.com/trezcool/thesisflow/core/user"
	"github.com/trezcool/thesisflow/core/workflow"
)

// email templates, see fs/templates/email
const (
	tmplSupervisionRequested  = "supervision_requested"
	tmplSupervisionDecided    = "supervision_decided"
	tmplSupervisionReminder   = "supervision_reminder"
	tmplStatusChanged         = "status_changed"
	tmplRegistrationConfirmed = "registration_confirmed"
)

type mailData struct {
	Thesis    Thesis
	Request   SupervisionRequest
	Recipient user.User
	Actor     user.User
	OldLabel  string
	NewLabel  string
}

func (svc *service) send(to user.User, subject, tmpl string, data mailData) {
	addr := to.MailAddress()
	if addr.Address == "" {
		return
	}
	data.Recipient = to
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{addr},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: data,
	})
}

// getUser fetches a notification recipient; failures are logged, never returned.
func (svc *service) getUser(ctx context.Context, id string) (user.User, bool) {
	if id == "" {
		return user.User{}, false
	}
	usr, err := svc.users.GetByID(ctx, id)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("notification: getting user %s: %v", id, err), err)
		return user.User{}, false
	}
	return usr, true
}

func (svc *service) notifyRequested(th Thesis, req SupervisionRequest, student, tutor user.User) {
	svc.send(tutor, "New supervision request", tmplSupervisionRequested, mailData{
		Thesis:  th,
		Request: req,
		Actor:   student,
	})
}

func (svc *service) notifyDecided(ctx context.Context, th Thesis, req SupervisionRequest, tutor user.User) {
	student, ok := svc.getUser(ctx, req.StudentID)
	if !ok {
		return
	}
	subject := "Your supervision request was accepted"
	if req.State == RequestRejected {
		subject = "Your supervision request was rejected"
	}
	svc.send(student, subject, tmplSupervisionDecided, mailData{
		Thesis:  th,
		Request: req,
		Actor:   tutor,
	})
}

// notifyStatusChanged tells the counterpart of the actor: the tutor when the student moved the
// thesis, the student otherwise.
func (svc *service) notifyStatusChanged(ctx context.Context, th Thesis, actor user.User, role workflow.Role, from workflow.Status) {
	recipientID := th.StudentID
	if role == workflow.RoleStudent {
		recipientID = th.TutorID
	}
	recipient, ok := svc.getUser(ctx, recipientID)
	if !ok {
		return
	}
	svc.send(recipient, "Thesis status changed", tmplStatusChanged, mailData{
		Thesis:   th,
		Actor:    actor,
		OldLabel: from.Label(),
		NewLabel: th.Status.Label(),
	})
}

func (svc *service) notifyRegistrationConfirmed(ctx context.Context, th Thesis) {
	student, ok := svc.getUser(ctx, th.StudentID)
	if !ok {
		return
	}
	svc.send(student, "Thesis registration confirmed", tmplRegistrationConfirmed, mailData{Thesis: th})
}

func (svc *service) notifyReminder(th Thesis, req SupervisionRequest, tutor user.User) {
	svc.send(tutor, "Supervision request awaiting your answer", tmplSupervisionReminder, mailData{
		Thesis:  th,
		Request: req,
	})
}
