package notification

import (
	"context"
	"fmt"
	"time"

	"teleclinic/models"
	"teleclinic/utils"

	"firebase.google.com/go/v4/messaging"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NotificationService defines methods for sending FCM pushes.
type NotificationService interface {
	SendPushNotification(ctx context.Context, userID, title, body string, data map[string]string) error
	NotifyUpcomingConsultation(ctx context.Context, payload models.ReminderPayload) error
	NotifyBookingCancelled(ctx context.Context, booking *models.Booking, cancelledBy string) error
}

// DefaultNotificationService is the production implementation. Device tokens
// are registered by the client apps under fcm:<userID> in redis.
type DefaultNotificationService struct {
	tokens *redis.Client
}

func NewDefaultNotificationService(tokens *redis.Client) (*DefaultNotificationService, error) {
	if tokens == nil {
		return nil, fmt.Errorf("notification service initialization error: token store is nil")
	}
	return &DefaultNotificationService{tokens: tokens}, nil
}

// SendPushNotification looks up a user's FCM token and sends a push.
func (s *DefaultNotificationService) SendPushNotification(
	ctx context.Context,
	userID, title, body string,
	data map[string]string,
) error {
	token, err := s.tokens.Get(ctx, "fcm:"+userID).Result()
	if err == redis.Nil || token == "" {
		return fmt.Errorf("SendPushNotification: user %s has no FCM token", userID)
	}
	if err != nil {
		return fmt.Errorf("SendPushNotification: token lookup for user %s failed: %w", userID, err)
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "high_priority",
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	response, err := utils.FCMClient.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("SendPushNotification: failed to send FCM message: %w", err)
	}
	utils.GetLogger().Debug("push notification sent",
		zap.String("userID", userID), zap.String("messageID", response))
	return nil
}

// NotifyUpcomingConsultation delivers the consultation reminder to the
// patient.
func (s *DefaultNotificationService) NotifyUpcomingConsultation(ctx context.Context, payload models.ReminderPayload) error {
	title := payload.Title
	if title == "" {
		title = "Upcoming consultation"
	}
	body := payload.Body
	if body == "" {
		body = "Your consultation is coming up. Please be ready to join."
		if at, err := time.Parse(time.RFC3339, payload.FireAt); err == nil {
			body = fmt.Sprintf("Your consultation is coming up at %s. Please be ready to join.",
				at.Format(time.Kitchen))
		}
	}
	return s.SendPushNotification(ctx, payload.PatientID, title, body, map[string]string{
		"type":      "consultation_reminder",
		"bookingID": payload.BookingID,
	})
}

// NotifyBookingCancelled tells the counterparty their consultation was
// cancelled. Failures are logged, never surfaced; the cancellation already
// happened.
func (s *DefaultNotificationService) NotifyBookingCancelled(ctx context.Context, booking *models.Booking, cancelledBy string) error {
	recipient := booking.PatientID
	if cancelledBy == booking.PatientID {
		recipient = booking.DoctorID
	}
	title := "Consultation cancelled"
	body := fmt.Sprintf("Your consultation on %s has been cancelled.",
		booking.Interval.Start.Format("Mon Jan 2, 3:04 PM"))

	err := s.SendPushNotification(ctx, recipient, title, body, map[string]string{
		"type":      "booking_cancelled",
		"bookingID": booking.ID,
	})
	if err != nil {
		utils.GetLogger().Warn("failed to deliver cancellation notice",
			zap.String("bookingID", booking.ID), zap.Error(err))
	}
	return nil
}
