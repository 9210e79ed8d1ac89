package job

import (
	"PetCare/internal/pkg/logger"
	"PetCare/internal/repository"
	"PetCare/internal/service"
	"context"
	log "log/slog"
	"time"

	"github.com/google/uuid"
)

// SupportReminderJob 周期巡检待认领的客服工单。
// 存在等待超时的工单时重推一次待接列表，避免客服端漏看推送后工单滞留。
type SupportReminderJob struct {
	roomRepo   repository.ChatRoomRepo
	supportSvc service.SupportService
	waitFor    time.Duration
}

func NewSupportReminderJob(roomRepo repository.ChatRoomRepo, supportSvc service.SupportService, waitForMins int) *SupportReminderJob {
	if waitForMins <= 0 {
		waitForMins = 5
	}
	return &SupportReminderJob{
		roomRepo:   roomRepo,
		supportSvc: supportSvc,
		waitFor:    time.Duration(waitForMins) * time.Minute,
	}
}

func (j *SupportReminderJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = context.WithValue(ctx, logger.TraceIDKey, uuid.NewString())

	rooms, err := j.roomRepo.ListPendingSupportRooms(ctx)
	if err != nil {
		log.ErrorContext(ctx, "巡检待认领工单失败", "err", err)
		return
	}

	cutoff := time.Now().Add(-j.waitFor)
	stale := 0
	for _, room := range rooms {
		if room.CreatedAt.Before(cutoff) {
			stale++
		}
	}
	if stale == 0 {
		return
	}

	log.WarnContext(ctx, "存在长时间无人认领的客服工单", "stale", stale, "pending", len(rooms))
	j.supportSvc.BroadcastPendingRequests(ctx)
}
