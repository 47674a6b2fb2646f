package worker

import (
	"github.com/spec-kit/event-service/internal/service"
)

// StartNotificationWorker registers the handlers that keep user event lists
// in step with membership and deletions.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
