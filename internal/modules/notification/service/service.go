package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"anoa.com/studentlms/internal/entity"
	"anoa.com/studentlms/pkg/mailer"
	"github.com/redis/go-redis/v9"
)

// StudentEventsChannel is the Redis channel student changes are published on.
const StudentEventsChannel = "student_events"

const (
	EventStudentCreated   = "student.created"
	EventStudentUpdated   = "student.updated"
	EventStudentDeleted   = "student.deleted"
	EventStudentBlocked   = "student.blocked"
	EventStudentUnblocked = "student.unblocked"
)

const sendTimeout = 10 * time.Second

type StudentEvent struct {
	Type      string    `json:"type"`
	ProfileID uint      `json:"profile_id"`
	Username  string    `json:"username"`
	Actor     string    `json:"actor,omitempty"`
	At        time.Time `json:"at"`
}

type NotificationService interface {
	// SendWelcome mails the registration greeting in the background.
	SendWelcome(user *entity.User)
	// SendPasswordReset mails a reset link in the background.
	SendPasswordReset(user *entity.User, link string)
	PublishStudentEvent(ctx context.Context, event StudentEvent)
	// Wait blocks until queued mail has been handed to the mailer.
	Wait()
}

type notificationService struct {
	mailer      mailer.Mailer
	from        string
	redisClient *redis.Client
	wg          sync.WaitGroup
}

func NewNotificationService(m mailer.Mailer, from string, redisClient *redis.Client) NotificationService {
	return &notificationService{
		mailer:      m,
		from:        from,
		redisClient: redisClient,
	}
}

func WelcomeMessage(from string, user *entity.User) mailer.Message {
	return mailer.Message{
		From:    from,
		To:      []string{user.Email},
		Subject: "Welcome to Student LMS 🎓",
		Body: fmt.Sprintf("Hello %s,\n\n"+
			"Welcome to Student LMS! Your account has been successfully created.\n\n"+
			"You can now log in and start exploring your dashboard.\n\n"+
			"Best regards,\nStudent LMS Team", user.FirstName),
	}
}

func PasswordResetMessage(from string, user *entity.User, link string) mailer.Message {
	return mailer.Message{
		From:    from,
		To:      []string{user.Email},
		Subject: "Reset your Student LMS password",
		Body: fmt.Sprintf("Hello %s,\n\n"+
			"Someone asked to reset the password of your Student LMS account %q.\n"+
			"Open the link below to choose a new password:\n\n%s\n\n"+
			"If you did not ask for this, you can ignore this email.\n\n"+
			"Best regards,\nStudent LMS Team", user.FirstName, user.Username, link),
	}
}

func (s *notificationService) SendWelcome(user *entity.User) {
	if user.Email == "" {
		return
	}
	s.dispatch(WelcomeMessage(s.from, user))
}

func (s *notificationService) SendPasswordReset(user *entity.User, link string) {
	if user.Email == "" {
		return
	}
	s.dispatch(PasswordResetMessage(s.from, user, link))
}

// dispatch sends msg on its own goroutine. Failures are logged and dropped.
func (s *notificationService) dispatch(msg mailer.Message) {
	if s.mailer == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := s.mailer.Send(ctx, msg); err != nil {
			log.Printf("❌ Failed to send %q to %v: %v", msg.Subject, msg.To, err)
		}
	}()
}

func (s *notificationService) PublishStudentEvent(ctx context.Context, event StudentEvent) {
	if s.redisClient == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.redisClient.Publish(ctx, StudentEventsChannel, payload).Err(); err != nil {
		log.Printf("Failed to publish %s event: %v", event.Type, err)
	}
}

func (s *notificationService) Wait() {
	s.wg.Wait()
}
