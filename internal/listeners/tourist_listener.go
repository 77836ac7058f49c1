package listeners

import (
	"TourGuard/internal/models"
	"TourGuard/pkg/logger"
	"TourGuard/pkg/util"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InitTouristListeners 安全分重算的唯一入口：
// 所有告警触发与状态/风险变更都通过 SigSafetyRecompute 汇入这里
func InitTouristListeners(db *gorm.DB) {
	util.Sig().Connect(models.SigSafetyRecompute, func(sender any, params ...any) {
		touristID, ok := sender.(uint)
		if !ok {
			return
		}
		score, err := models.RecomputeSafety(db, touristID)
		if err != nil {
			logger.Warn("safety score recompute failed",
				zap.Uint("tourist_id", touristID), zap.Error(err))
			return
		}
		logger.Debug("safety score recomputed",
			zap.Uint("tourist_id", touristID), zap.Int("score", score))
	})
}
