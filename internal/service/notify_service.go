package service

import (
	"PetCare/internal/api/dto"
	"PetCare/internal/pkg/kafka"
	log "log/slog"
	"strconv"
)

// NotifyService 离线通知出口：投递到 Kafka 供下游通知服务消费
type NotifyService interface {
	NotifyOffline(n *dto.OfflineNotificationDTO)
	Close()
}

type notifyServiceImpl struct {
	producer *kafka.Producer
	policy   *kafka.Policy
}

// NewNotifyService producer 为 nil 时降级为空操作（本地开发未配置 Kafka）
func NewNotifyService(producer *kafka.Producer) NotifyService {
	return &notifyServiceImpl{
		producer: producer,
		policy:   kafka.NewPolicy(),
	}
}

// NotifyOffline 异步投递，不阻塞消息发送主链路。
// 投递失败只记日志：离线通知属于尽力而为。
func (s *notifyServiceImpl) NotifyOffline(n *dto.OfflineNotificationDTO) {
	if s.producer == nil {
		return
	}
	go func() {
		key := strconv.FormatUint(n.ReceiverID, 10)
		err := s.policy.Execute(func() error {
			return s.producer.Send(key, n)
		})
		if err != nil {
			log.Error("离线通知投递失败", "receiver_id", n.ReceiverID, "room_id", n.RoomID, "err", err)
		}
	}()
}

func (s *notifyServiceImpl) Close() {
	if s.producer == nil {
		return
	}
	if err := s.producer.Close(); err != nil {
		log.Error("关闭 Kafka 生产者失败", "err", err)
	}
}
