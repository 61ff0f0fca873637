package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/studyconnect/studyconnect-api/internal/events"
	"github.com/studyconnect/studyconnect-api/internal/mailer"
	"github.com/studyconnect/studyconnect-api/internal/models"
	"github.com/studyconnect/studyconnect-api/pkg/jobs"
)

type userRefLister interface {
	RefsByRoles(ctx context.Context, roles ...models.UserRole) ([]models.UserRef, error)
}

type eventSubscriber interface {
	Subscribe(ctx context.Context) (<-chan *eventsMessage, error)
}

// eventsMessage aliases the watermill message so the interface above stays
// mockable without importing watermill here.
type eventsMessage = events.Message

// NotificationConfig tunes email dispatch.
type NotificationConfig struct {
	Workers    int
	BufferSize int
	SubjectTag string
}

// emailJob is the payload carried through the dispatch queue.
type emailJob struct {
	Kind    string
	Message *mailer.Message
}

// NotificationService turns lifecycle events into best-effort emails. A
// failed send is logged and dropped; it never blocks or fails the mutation
// that triggered it.
type NotificationService struct {
	bus     eventSubscriber
	queue   *jobs.Queue
	mailer  mailer.Mailer
	users   userRefLister
	metrics *MetricsService
	logger  *zap.Logger
	tag     string
}

// NewNotificationService constructs the notification pipeline.
func NewNotificationService(bus eventSubscriber, m mailer.Mailer, users userRefLister, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		bus:     bus,
		mailer:  m,
		users:   users,
		metrics: metrics,
		logger:  logger,
		tag:     cfg.SubjectTag,
	}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: 0,
		Logger:     logger,
	})
	return s
}

// Run subscribes to the event bus and dispatches emails until the context is
// cancelled.
func (s *NotificationService) Run(ctx context.Context) error {
	messages, err := s.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	s.queue.Start(ctx)
	defer s.queue.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.handle(ctx, msg)
			msg.Ack()
		}
	}
}

func (s *NotificationService) handle(ctx context.Context, msg *eventsMessage) {
	event, err := events.FromMessage(msg)
	if err != nil {
		s.logger.Warn("malformed event dropped", zap.Error(err))
		return
	}

	emails, err := s.build(ctx, event)
	if err != nil {
		s.logger.Warn("notification build failed",
			zap.String("type", string(event.Type)), zap.Error(err))
		return
	}
	for _, email := range emails {
		if !email.Message.HasRecipients() {
			continue
		}
		if err := s.queue.Enqueue(jobs.Job{Type: email.Kind, Payload: email}); err != nil {
			s.logger.Warn("notification dropped, queue full",
				zap.String("kind", email.Kind), zap.Error(err))
		}
	}
}

func (s *NotificationService) build(ctx context.Context, event *events.Event) ([]emailJob, error) {
	switch event.Type {
	case events.TypeRequestCreated:
		var payload events.RequestCreated
		if err := event.Decode(&payload); err != nil {
			return nil, err
		}
		return s.buildRequestCreated(ctx, payload)
	case events.TypeTutorAssigned:
		var payload events.TutorAssigned
		if err := event.Decode(&payload); err != nil {
			return nil, err
		}
		return []emailJob{s.buildTutorAssigned(payload)}, nil
	case events.TypeStatusChanged:
		var payload events.StatusChanged
		if err := event.Decode(&payload); err != nil {
			return nil, err
		}
		return []emailJob{s.buildStatusChanged(payload)}, nil
	case events.TypeFeedbackCreated:
		var payload events.FeedbackCreated
		if err := event.Decode(&payload); err != nil {
			return nil, err
		}
		return []emailJob{s.buildFeedbackCreated(payload)}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", event.Type)
}

// buildRequestCreated produces the student confirmation plus the broadcast
// to every admin and tutor. A failure to load the broadcast roster still
// returns the student confirmation.
func (s *NotificationService) buildRequestCreated(ctx context.Context, payload events.RequestCreated) ([]emailJob, error) {
	confirmation := emailJob{
		Kind: "request-created",
		Message: &mailer.Message{
			To:      []mailer.Recipient{{Name: payload.StudentName, Email: payload.StudentEmail}},
			Subject: s.subject(fmt.Sprintf("Request Created Successfully - %s", payload.Subject)),
			TextBody: fmt.Sprintf(
				"Hi %s,\n\nThank you for creating a request on StudyConnect! We've successfully received your request and it's now live on our platform.\n\nSubject: %s\nGrade Level: %s\n\nQualified tutors will be notified about your request and can now start responding. You'll receive an email notification as soon as a tutor is assigned to your request.\n\nThis is an automated message. Please do not reply directly to this email.",
				payload.StudentName, payload.Subject, payload.GradeLevel),
			HTMLBody: fmt.Sprintf(
				"<h2>Request Created Successfully!</h2><p>Hi <strong>%s</strong>,</p><p>Thank you for creating a request on StudyConnect! We've successfully received your request and it's now live on our platform.</p><p><strong>Subject:</strong> %s<br><strong>Grade Level:</strong> %s</p><p>Qualified tutors will be notified about your request and can now start responding. You'll receive an email notification as soon as a tutor is assigned to your request.</p><p>This is an automated message. Please do not reply directly to this email.</p>",
				payload.StudentName, payload.Subject, payload.GradeLevel),
		},
	}

	jobsOut := []emailJob{confirmation}

	refs, err := s.users.RefsByRoles(ctx, models.RoleAdmin, models.RoleTutor)
	if err != nil {
		s.logger.Warn("broadcast roster lookup failed", zap.Error(err))
		return jobsOut, nil
	}
	recipients := make([]mailer.Recipient, 0, len(refs))
	for _, ref := range refs {
		recipients = append(recipients, mailer.Recipient{Name: ref.Name, Email: ref.Email})
	}
	jobsOut = append(jobsOut, emailJob{
		Kind: "request-broadcast",
		Message: &mailer.Message{
			To:      recipients,
			Subject: s.subject(fmt.Sprintf("New Tutoring Request - %s", payload.Subject)),
			TextBody: fmt.Sprintf(
				"Hi Admin/Tutor,\n\nA new student request has been posted on StudyConnect. Please review and consider assigning it if you're available.\n\nSubject: %s\nGrade Level: %s\nStudent: %s\nDescription: %s",
				payload.Subject, payload.GradeLevel, payload.StudentName, payload.Description),
			HTMLBody: fmt.Sprintf(
				"<h2>New Request Available</h2><p>Hi Admin/Tutor,</p><p>A new student request has been posted on StudyConnect. Please review and consider assigning it if you're available.</p><p><strong>Subject:</strong> %s<br><strong>Grade Level:</strong> %s<br><strong>Student:</strong> %s</p><p>%s</p>",
				payload.Subject, payload.GradeLevel, payload.StudentName, payload.Description),
		},
	})
	return jobsOut, nil
}

func (s *NotificationService) buildTutorAssigned(payload events.TutorAssigned) emailJob {
	return emailJob{
		Kind: "tutor-assigned",
		Message: &mailer.Message{
			To:      []mailer.Recipient{{Name: payload.StudentName, Email: payload.StudentEmail}},
			Subject: s.subject(fmt.Sprintf("Great News! A Tutor Has Been Assigned - %s", payload.Subject)),
			TextBody: fmt.Sprintf(
				"Hi %s,\n\nWe're excited to inform you that a qualified tutor has been assigned to your %s request!\n\nTutor Name: %s\nSubject: %s\nRequest ID: %s\n\nYour tutor will be reaching out soon to discuss the best learning schedule and approach tailored to your needs.\n\nThis is an automated message. Please do not reply directly to this email.",
				payload.StudentName, payload.Subject, payload.TutorName, payload.Subject, payload.RequestID),
			HTMLBody: fmt.Sprintf(
				"<h2>Tutor Assigned Successfully!</h2><p>Hi <strong>%s</strong>,</p><p>We're excited to inform you that a qualified tutor has been assigned to your <strong>%s</strong> request!</p><p><strong>Tutor Name:</strong> %s<br><strong>Subject:</strong> %s<br><strong>Request ID:</strong> %s</p><p>Your tutor will be reaching out soon to discuss the best learning schedule and approach tailored to your needs.</p><p>This is an automated message. Please do not reply directly to this email.</p>",
				payload.StudentName, payload.Subject, payload.TutorName, payload.Subject, payload.RequestID),
		},
	}
}

func (s *NotificationService) buildStatusChanged(payload events.StatusChanged) emailJob {
	statusLine := models.StatusMessage(models.RequestStatus(payload.NewStatus))
	return emailJob{
		Kind: "status-changed",
		Message: &mailer.Message{
			To:      []mailer.Recipient{{Name: payload.StudentName, Email: payload.StudentEmail}},
			Subject: s.subject(fmt.Sprintf("Request Status Update - %s", payload.Subject)),
			TextBody: fmt.Sprintf(
				"Hi %s,\n\nYour %s request status has been updated: %s\n\n%s\n\nRequest ID: %s\nSubject: %s\n\nThis is an automated message. Please do not reply directly to this email.",
				payload.StudentName, payload.Subject, payload.NewStatus, statusLine, payload.RequestID, payload.Subject),
			HTMLBody: fmt.Sprintf(
				"<h2>Request Status Updated</h2><p>Hi <strong>%s</strong>,</p><p>Your <strong>%s</strong> request status has been updated: <strong>%s</strong></p><p>%s</p><p><strong>Request ID:</strong> %s<br><strong>Subject:</strong> %s</p><p>This is an automated message. Please do not reply directly to this email.</p>",
				payload.StudentName, payload.Subject, payload.NewStatus, statusLine, payload.RequestID, payload.Subject),
		},
	}
}

func (s *NotificationService) buildFeedbackCreated(payload events.FeedbackCreated) emailJob {
	return emailJob{
		Kind: "feedback-created",
		Message: &mailer.Message{
			To:      []mailer.Recipient{{Name: payload.TutorName, Email: payload.TutorEmail}},
			Subject: s.subject(fmt.Sprintf("New Lesson Feedback Received - %s", payload.Lesson)),
			TextBody: fmt.Sprintf(
				"Hi %s,\n\nA student has left feedback on your lesson \"%s\".\n\nRating: %d/5\n\n%s\n\nThis is an automated message. Please do not reply directly to this email.",
				payload.TutorName, payload.Lesson, payload.Rating, payload.Feedback),
			HTMLBody: fmt.Sprintf(
				"<h2>New Lesson Feedback</h2><p>Hi <strong>%s</strong>,</p><p>A student has left feedback on your lesson <strong>%s</strong>.</p><p><strong>Rating:</strong> %d/5</p><p>%s</p><p>This is an automated message. Please do not reply directly to this email.</p>",
				payload.TutorName, payload.Lesson, payload.Rating, payload.Feedback),
		},
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	email, ok := job.Payload.(emailJob)
	if !ok {
		return fmt.Errorf("unexpected job payload %T", job.Payload)
	}
	err := s.mailer.Send(ctx, email.Message)
	s.metrics.RecordEmail(email.Kind, err == nil)
	if err != nil {
		return fmt.Errorf("send %s email: %w", email.Kind, err)
	}
	return nil
}

func (s *NotificationService) subject(base string) string {
	if s.tag == "" {
		return base
	}
	return s.tag + " " + base
}
