package listeners

import (
	"context"

	"TourGuard/internal/models"
	"TourGuard/pkg/logger"
	"TourGuard/pkg/metrics"
	"TourGuard/pkg/notification"
	"TourGuard/pkg/util"

	"go.uber.org/zap"
)

// InitAlertListeners 告警事件推送。推送是尽力而为的旁路，
// 任何失败只记日志，绝不影响已落库的状态变更
func InitAlertListeners(fanout notification.Fanout, pusher *notification.Pusher) {
	publishAlert := func(event string) util.SignalHandler {
		return func(sender any, params ...any) {
			alert, ok := sender.(*models.Alert)
			if !ok {
				return
			}
			ctx := context.Background()
			fanout.Publish(ctx, notification.RoomStaff, event, alert)
			fanout.Publish(ctx, notification.RoomTourist(alert.TouristID), event, alert)
		}
	}

	util.Sig().Connect(models.SigAlertCreated, func(sender any, params ...any) {
		alert, ok := sender.(*models.Alert)
		if !ok {
			return
		}
		metrics.AlertsCreated(alert.Type, alert.Severity)

		ctx := context.Background()
		fanout.Publish(ctx, notification.RoomStaff, notification.EventAlertCreated, alert)
		fanout.Publish(ctx, notification.RoomTourist(alert.TouristID), notification.EventAlertCreated, alert)

		// critical 告警追加移动端推送
		if pusher != nil && alert.Severity == models.SeverityCritical {
			go func() {
				err := pusher.PushToAll(context.Background(), alert.Title, alert.Description,
					map[string]interface{}{"alertId": alert.AlertID})
				if err != nil {
					logger.Warn("mobile push failed",
						zap.String("alert_id", alert.AlertID), zap.Error(err))
				}
			}()
		}
	})

	util.Sig().Connect(models.SigAlertAcknowledged, publishAlert(notification.EventAlertAcknowledged))
	util.Sig().Connect(models.SigAlertResolved, publishAlert(notification.EventAlertResolved))

	util.Sig().Connect(models.SigAlertEscalated, func(sender any, params ...any) {
		alert, ok := sender.(*models.Alert)
		if !ok {
			return
		}
		metrics.AlertsEscalated(alert.Severity)
		fanout.Publish(context.Background(), notification.RoomStaff,
			notification.EventAlertEscalated, alert)
	})

	util.Sig().Connect(models.SigVitalsBreach, func(sender any, params ...any) {
		device, ok := sender.(*models.Device)
		if !ok {
			return
		}
		fanout.Publish(context.Background(), notification.RoomStaff,
			notification.EventVitalsBreach, device)
	})

	util.Sig().Connect(models.SigDigitalIDIssued, func(sender any, params ...any) {
		card, ok := sender.(*models.DigitalIDCard)
		if !ok {
			return
		}
		fanout.Publish(context.Background(), notification.RoomTourist(card.TouristID),
			notification.EventDigitalIDIssued, card)
	})
}
