package service

import (
	"PetCare/internal/api/dto"
	"PetCare/internal/model"
	"PetCare/internal/pkg/consts"
	"PetCare/internal/pkg/directory"
	"PetCare/internal/repository"
	"context"
	log "log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// SupportService 客服工单路由：入队、认领、换人、撤席
type SupportService interface {
	InitiateSupportChatRoom(ctx context.Context, customerID uint64) (*dto.ChatRoomDTO, bool, error)
	GetPendingSupportRequests(ctx context.Context) ([]*dto.PendingSupportRequestDTO, error)
	AssignStaffToChatRoom(ctx context.Context, roomID, staffID, customerID uint64) error
	RequestNewSupporter(ctx context.Context, roomID, customerID uint64) error
	RemoveStaffFromChatRoom(ctx context.Context, roomID, staffID uint64) error
	BroadcastPendingRequests(ctx context.Context)
}

type supportServiceImpl struct {
	roomRepo  repository.ChatRoomRepo
	publisher EventPublisher
	directory directory.Client
}

func NewSupportService(roomRepo repository.ChatRoomRepo, publisher EventPublisher, dir directory.Client) SupportService {
	return &supportServiceImpl{
		roomRepo:  roomRepo,
		publisher: publisher,
		directory: dir,
	}
}

// InitiateSupportChatRoom 幂等创建客服房间：同一客户始终复用同一个房间
func (s *supportServiceImpl) InitiateSupportChatRoom(ctx context.Context, customerID uint64) (*dto.ChatRoomDTO, bool, error) {
	if customerID == 0 {
		return nil, false, ErrParamInvalid
	}

	pairKey := consts.SupportPairKeyPrefix + strconv.FormatUint(customerID, 10)
	if room, err := s.roomRepo.GetRoomByPairKey(ctx, pairKey); err == nil {
		return toChatRoomDTO(room), false, nil
	}

	room := &model.ChatRoom{
		PairKey:       pairKey,
		IsSupportRoom: 1,
		RoomOwnerID:   customerID,
		LastMessageAt: time.Now(),
	}
	if err := s.roomRepo.CreateRoom(ctx, room); err != nil {
		if isDuplicateKey(err) {
			existing, getErr := s.roomRepo.GetRoomByPairKey(ctx, pairKey)
			if getErr == nil {
				return toChatRoomDTO(existing), false, nil
			}
		}
		return nil, false, err
	}

	owner := []*model.ChatParticipant{
		{RoomID: room.ID, UserID: customerID, ServeFor: customerID, IsSeen: 1},
	}
	if err := s.roomRepo.CreateParticipants(ctx, owner); err != nil {
		log.ErrorContext(ctx, "客服房间成员写入失败", "room_id", room.ID, "customer_id", customerID, "err", err)
		return nil, false, ErrParticipantCreate
	}

	// 新工单入队，通知所有在线客服刷新待接列表
	s.BroadcastPendingRequests(ctx)

	return toChatRoomDTO(room), true, nil
}

// GetPendingSupportRequests 按创建时间升序返回待接工单，附客户展示名
func (s *supportServiceImpl) GetPendingSupportRequests(ctx context.Context) ([]*dto.PendingSupportRequestDTO, error) {
	rooms, err := s.roomRepo.ListPendingSupportRooms(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.PendingSupportRequestDTO, 0, len(rooms))
	for _, room := range rooms {
		item := &dto.PendingSupportRequestDTO{
			RoomID:     room.ID,
			CustomerID: room.RoomOwnerID,
			CreatedAt:  room.CreatedAt,
		}
		if summary, err := s.directory.GetUserSummary(ctx, room.RoomOwnerID); err == nil {
			item.CustomerName = summary.Name
		}
		res = append(res, item)
	}
	return res, nil
}

// AssignStaffToChatRoom 客服认领工单。
// 条件更新保证多实例并发下只有一个客服成功，其余得到冲突错误。
func (s *supportServiceImpl) AssignStaffToChatRoom(ctx context.Context, roomID, staffID, customerID uint64) error {
	if roomID == 0 || staffID == 0 {
		return ErrParamInvalid
	}

	room, err := s.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		if isNotFound(err) {
			return ErrRoomNotFound
		}
		return err
	}
	if room.IsSupportRoom != 1 {
		return ErrNotSupportRoom
	}
	if customerID != 0 && customerID != room.RoomOwnerID {
		return ErrParamInvalid
	}

	claimed, err := s.roomRepo.ClaimSupporter(ctx, roomID, staffID)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrSupporterTaken
	}

	if err := s.roomRepo.UpsertSupporterParticipant(ctx, roomID, staffID, room.RoomOwnerID); err != nil {
		log.ErrorContext(ctx, "客服成员行写入失败", "room_id", roomID, "staff_id", staffID, "err", err)
		return ErrParticipantCreate
	}

	// 工单出队，刷新所有客服的待接列表，并通知房间内客户
	s.BroadcastPendingRequests(ctx)
	s.publishToRoom(ctx, roomID, dto.EvJoinedChatRoom, toChatRoomDTO(room))

	return nil
}

// RequestNewSupporter 客户要求换人：释放当前客服并把工单放回队列
func (s *supportServiceImpl) RequestNewSupporter(ctx context.Context, roomID, customerID uint64) error {
	room, err := s.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		if isNotFound(err) {
			return ErrRoomNotFound
		}
		return err
	}
	if room.IsSupportRoom != 1 {
		return ErrNotSupportRoom
	}
	if customerID != 0 && customerID != room.RoomOwnerID {
		return ErrNotRoomMember
	}

	released, err := s.roomRepo.ReleaseSupporter(ctx, roomID, 0)
	if err != nil {
		return err
	}
	if !released {
		return ErrNoSupporterAssigned
	}

	s.publishToRoom(ctx, roomID, dto.EvNewSupporterRequested, &dto.ChatRoomDTO{RoomID: roomID, IsSupportRoom: true, RoomOwnerID: room.RoomOwnerID})
	s.BroadcastPendingRequests(ctx)

	return nil
}

// RemoveStaffFromChatRoom 客服主动退出工单：仅持有者可退，退回队列等待新客服
func (s *supportServiceImpl) RemoveStaffFromChatRoom(ctx context.Context, roomID, staffID uint64) error {
	if roomID == 0 || staffID == 0 {
		return ErrParamInvalid
	}

	room, err := s.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		if isNotFound(err) {
			return ErrRoomNotFound
		}
		return err
	}
	if room.IsSupportRoom != 1 {
		return ErrNotSupportRoom
	}

	released, err := s.roomRepo.ReleaseSupporter(ctx, roomID, staffID)
	if err != nil {
		return err
	}
	if !released {
		return ErrNoSupporterAssigned
	}

	s.publishToRoom(ctx, roomID, dto.EvNewSupporterRequested, &dto.ChatRoomDTO{RoomID: roomID, IsSupportRoom: true, RoomOwnerID: room.RoomOwnerID})
	s.BroadcastPendingRequests(ctx)

	return nil
}

// BroadcastPendingRequests 把最新待接列表推到客服公共频道
func (s *supportServiceImpl) BroadcastPendingRequests(ctx context.Context) {
	pending, err := s.GetPendingSupportRequests(ctx)
	if err != nil {
		log.ErrorContext(ctx, "构建待接工单列表失败", "err", err)
		return
	}
	payload, err := json.Marshal(&dto.WsEvent{Type: dto.EvUpdatePendingSupportRequests, Data: pending})
	if err != nil {
		log.ErrorContext(ctx, "事件序列化失败", "type", dto.EvUpdatePendingSupportRequests, "err", err)
		return
	}
	if err := s.publisher.Publish(ctx, consts.ChatStaffChannel, payload); err != nil {
		log.ErrorContext(ctx, "客服频道广播失败", "err", err)
	}
}

func (s *supportServiceImpl) publishToRoom(ctx context.Context, roomID uint64, eventType string, data interface{}) {
	payload, err := json.Marshal(&dto.WsEvent{Type: eventType, Data: data})
	if err != nil {
		log.ErrorContext(ctx, "事件序列化失败", "type", eventType, "err", err)
		return
	}
	channel := consts.ChatRoomChannel + strconv.FormatUint(roomID, 10)
	if err := s.publisher.Publish(ctx, channel, payload); err != nil {
		log.ErrorContext(ctx, "房间广播失败", "channel", channel, "type", eventType, "err", err)
	}
}
