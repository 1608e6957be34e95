package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"anoa.com/studentlms/internal/entity"
	"anoa.com/studentlms/internal/testutil"
	"anoa.com/studentlms/pkg/mailer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendWelcome(t *testing.T) {
	rec := mailer.NewRecorder()
	svc := NewNotificationService(rec, "lms@example.com", nil)

	svc.SendWelcome(&entity.User{FirstName: "Alice", Email: "alice@example.com"})
	svc.Wait()

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"alice@example.com"}, msgs[0].To)
	assert.Equal(t, "Welcome to Student LMS 🎓", msgs[0].Subject)
	assert.Contains(t, msgs[0].Body, "Hello Alice,")
}

func TestSendFailureIsSwallowed(t *testing.T) {
	rec := mailer.NewRecorder()
	rec.Err = errors.New("smtp down")
	svc := NewNotificationService(rec, "lms@example.com", nil)

	svc.SendWelcome(&entity.User{Email: "alice@example.com"})
	svc.Wait()
	assert.Len(t, rec.Messages(), 1, "attempted once, error only logged")
}

func TestSendSkipsAccountsWithoutEmail(t *testing.T) {
	rec := mailer.NewRecorder()
	svc := NewNotificationService(rec, "lms@example.com", nil)

	svc.SendPasswordReset(&entity.User{}, "http://x")
	svc.Wait()
	assert.Empty(t, rec.Messages())
}

func TestPublishStudentEvent(t *testing.T) {
	_, client := testutil.NewRedis(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, StudentEventsChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	svc := NewNotificationService(nil, "", client)
	svc.PublishStudentEvent(ctx, StudentEvent{Type: EventStudentBlocked, ProfileID: 3, Username: "alice"})

	select {
	case msg := <-sub.Channel():
		var got StudentEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, EventStudentBlocked, got.Type)
		assert.EqualValues(t, 3, got.ProfileID)
		assert.False(t, got.At.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}
