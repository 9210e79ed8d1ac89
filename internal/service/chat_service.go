package service

import (
	"PetCare/internal/api/dto"
	"PetCare/internal/model"
	"PetCare/internal/pkg/consts"
	"PetCare/internal/pkg/directory"
	"PetCare/internal/pkg/mongo"
	"PetCare/internal/repository"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

// ConnectionRegistry 消费方视角的连接注册表：按用户找到当前在线连接。
// 完整实现由 hub 提供并经 wire 注入，多实例部署可替换为共享存储实现。
type ConnectionRegistry interface {
	Lookup(userID uint64) (connectionID string, ok bool)
}

// EventPublisher 出站事件总线。生产环境为 Redis Pub/Sub。
type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// PublisherFunc 函数适配器
type PublisherFunc func(ctx context.Context, channel string, payload []byte) error

func (f PublisherFunc) Publish(ctx context.Context, channel string, payload []byte) error {
	return f(ctx, channel, payload)
}

// ChatService 聊天核心服务：直聊房间管理、消息转发与未读数
type ChatService interface {
	CreateOrGetDirectRoom(ctx context.Context, senderID, receiverID uint64) (*dto.ChatRoomDTO, bool, error)
	SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error)
	GetChatMessages(ctx context.Context, userID, roomID, lastSeq uint64, pageSize int) ([]*dto.MessageDTO, error)
	GetChatRoomList(ctx context.Context, userID uint64) ([]*dto.ChatRoomListItem, error)
	GetUnreadNotificationCount(ctx context.Context, userID uint64) (int64, error)
	Close()
}

type chatServiceImpl struct {
	roomRepo    repository.ChatRoomRepo
	messageRepo mongo.MessageRepo
	registry    ConnectionRegistry
	publisher   EventPublisher
	notifier    NotifyService
	directory   directory.Client

	retryChan chan *mongo.ChatMessage
	wg        sync.WaitGroup
	stopChan  chan struct{}
}

// NewChatService 构造函数：初始化服务并启动 Mongo 落库补偿工作池
func NewChatService(
	roomRepo repository.ChatRoomRepo,
	messageRepo mongo.MessageRepo,
	registry ConnectionRegistry,
	publisher EventPublisher,
	notifier NotifyService,
	dir directory.Client,
) ChatService {
	s := &chatServiceImpl{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		registry:    registry,
		publisher:   publisher,
		notifier:    notifier,
		directory:   dir,
		retryChan:   make(chan *mongo.ChatMessage, 2048),
		stopChan:    make(chan struct{}),
	}

	workerCount := 5
	s.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go s.persistRetryWorker()
	}

	return s
}

// CreateOrGetDirectRoom 幂等创建直聊房间。
// 已存在时直接返回旧房间，bool 返回值标识本次是否新建。
func (s *chatServiceImpl) CreateOrGetDirectRoom(ctx context.Context, senderID, receiverID uint64) (*dto.ChatRoomDTO, bool, error) {
	if senderID == 0 || receiverID == 0 {
		return nil, false, ErrParamInvalid
	}
	if senderID == receiverID {
		return nil, false, ErrSelfChat
	}

	pairKey := directPairKey(senderID, receiverID)
	if room, err := s.roomRepo.GetRoomByPairKey(ctx, pairKey); err == nil {
		return toChatRoomDTO(room), false, nil
	}

	room := &model.ChatRoom{
		PairKey:       pairKey,
		LastMessageAt: time.Now(),
	}
	if err := s.roomRepo.CreateRoom(ctx, room); err != nil {
		// 并发创建撞唯一索引：对方已建好，取回即可
		if isDuplicateKey(err) {
			existing, getErr := s.roomRepo.GetRoomByPairKey(ctx, pairKey)
			if getErr == nil {
				return toChatRoomDTO(existing), false, nil
			}
		}
		return nil, false, err
	}

	// 第二步：写入成员行。失败时房间成了空壳，按协定只上报不重试，
	// 重试可能在无事务保障下产生重复成员。
	participants := []*model.ChatParticipant{
		{RoomID: room.ID, UserID: senderID, IsSeen: 1},
		{RoomID: room.ID, UserID: receiverID, IsSeen: 1},
	}
	if err := s.roomRepo.CreateParticipants(ctx, participants); err != nil {
		log.ErrorContext(ctx, "聊天室成员写入失败，房间缺少成员",
			"room_id", room.ID, "sender_id", senderID, "receiver_id", receiverID, "err", err)
		return nil, false, ErrParticipantCreate
	}

	// 通知双方刷新会话入口
	s.publishToUser(ctx, senderID, dto.EvUpdateAfterCreate, toChatRoomDTO(room))
	s.publishToUser(ctx, receiverID, dto.EvUpdateAfterCreate, toChatRoomDTO(room))

	return toChatRoomDTO(room), true, nil
}

// SendMessage 发送消息：定序落摘要、落明细、广播、刷新各在线成员的房间列表
func (s *chatServiceImpl) SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	if req.Text == "" && req.ImageRef == "" {
		return nil, ErrMessageEmpty
	}

	room, err := s.roomRepo.GetRoom(ctx, req.RoomID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	isMember, err := s.roomRepo.IsParticipant(ctx, room.ID, senderID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotRoomMember
	}

	preview := req.Text
	if preview == "" {
		preview = "[图片]"
	}

	// MySQL 原子定序，同一事务更新房间摘要
	newSeq, err := s.roomRepo.IncrMaxSeq(ctx, room.ID, preview, senderID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	msg := &mongo.ChatMessage{
		RoomID:    room.ID,
		SenderID:  senderID,
		Text:      req.Text,
		ImageRef:  req.ImageRef,
		Seq:       newSeq,
		CreatedAt: time.Now(),
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.messageRepo.SaveMessage(writeCtx, msg); err != nil {
		select {
		case s.retryChan <- msg:
		default:
			log.ErrorContext(ctx, "消息补偿队列已满，明细丢失", "room_id", room.ID, "seq", newSeq)
		}
	}

	msgDTO := toMessageDTO(msg)

	// 广播到房间组，再逐个刷新在线成员的房间列表
	s.publishToRoom(ctx, room.ID, dto.EvReceiveMessage, msgDTO)
	s.refreshParticipants(ctx, room.ID, senderID, preview)

	return msgDTO, nil
}

// GetChatMessages 拉取历史并标记已读，包含摘要空洞自愈
func (s *chatServiceImpl) GetChatMessages(ctx context.Context, userID, roomID, lastSeq uint64, pageSize int) ([]*dto.MessageDTO, error) {
	room, err := s.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	isMember, err := s.roomRepo.IsParticipant(ctx, roomID, userID)
	if err != nil || !isMember {
		return nil, ErrNotRoomMember
	}

	if pageSize <= 0 {
		pageSize = 20
	}
	models, err := s.messageRepo.GetHistory(ctx, roomID, lastSeq, pageSize)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.MessageDTO, 0, len(models)+1)

	// 首页且 Mongo 明细落后于 MySQL 摘要时，用摘要补一条占位，避免列表与详情对不上
	if lastSeq == 0 {
		hasGap := (len(models) == 0 && room.MaxMsgSeq > 0) ||
			(len(models) > 0 && models[0].Seq < room.MaxMsgSeq)
		if hasGap {
			res = append(res, &dto.MessageDTO{
				RoomID:    room.ID,
				SenderID:  room.LastSenderID,
				Text:      room.LastMessage,
				Seq:       room.MaxMsgSeq,
				CreatedAt: room.LastMessageAt,
			})
		}
	}
	for _, m := range models {
		res = append(res, toMessageDTO(m))
	}

	// 打开房间即视为已读，随后把最新未读数推给本人
	if err := s.roomRepo.MarkSeen(ctx, roomID, userID); err != nil {
		log.WarnContext(ctx, "标记已读失败", "room_id", roomID, "user_id", userID, "err", err)
	} else {
		s.pushUnreadCount(userID)
	}

	return res, nil
}

// GetChatRoomList 获取房间列表，直聊附带对端展示名
func (s *chatServiceImpl) GetChatRoomList(ctx context.Context, userID uint64) ([]*dto.ChatRoomListItem, error) {
	participants, err := s.roomRepo.GetUserRoomList(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ChatRoomListItem, 0, len(participants))
	for _, p := range participants {
		item := &dto.ChatRoomListItem{
			RoomID:        p.Room.ID,
			IsSupportRoom: p.Room.IsSupportRoom == 1,
			LastMessage:   p.Room.LastMessage,
			LastSenderID:  p.Room.LastSenderID,
			LastMessageAt: p.Room.LastMessageAt,
			IsSeen:        p.IsSeen == 1,
		}

		if p.Room.IsSupportRoom == 1 {
			if userID == p.Room.RoomOwnerID {
				item.PeerID = p.Room.SupporterID
			} else {
				item.PeerID = p.Room.RoomOwnerID
			}
		} else {
			peerID, err := parsePeerID(p.Room.PairKey, userID)
			if err != nil {
				log.WarnContext(ctx, "非法的 pair_key", "room_id", p.Room.ID, "pair_key", p.Room.PairKey)
				continue
			}
			item.PeerID = peerID
		}

		if item.PeerID != 0 {
			if summary, err := s.directory.GetUserSummary(ctx, item.PeerID); err == nil {
				item.PeerName = summary.Name
			}
		}
		res = append(res, item)
	}
	return res, nil
}

// GetUnreadNotificationCount 未读通知数：存在未读且最后一条非本人发送的房间数
func (s *chatServiceImpl) GetUnreadNotificationCount(ctx context.Context, userID uint64) (int64, error) {
	if userID == 0 {
		return 0, ErrParamInvalid
	}
	return s.roomRepo.UnreadRoomCount(ctx, userID)
}

func (s *chatServiceImpl) Close() {
	close(s.stopChan)
	s.wg.Wait()
	log.Info("ChatService shut down gracefully")
}

// refreshParticipants 给房间内每个在线成员推送最新房间列表，离线成员转离线通知管道
func (s *chatServiceImpl) refreshParticipants(ctx context.Context, roomID uint64, senderID uint64, preview string) {
	participants, err := s.roomRepo.GetRoomParticipants(ctx, roomID)
	if err != nil {
		log.WarnContext(ctx, "获取房间成员失败，跳过列表刷新", "room_id", roomID, "err", err)
		return
	}

	for _, p := range participants {
		if _, online := s.registry.Lookup(p.UserID); online {
			list, err := s.GetChatRoomList(ctx, p.UserID)
			if err != nil {
				log.WarnContext(ctx, "构建房间列表失败", "user_id", p.UserID, "err", err)
				continue
			}
			s.publishToUser(ctx, p.UserID, dto.EvGetList, list)
			continue
		}
		if p.UserID != senderID {
			s.notifier.NotifyOffline(&dto.OfflineNotificationDTO{
				ReceiverID: p.UserID,
				RoomID:     roomID,
				SenderID:   senderID,
				Preview:    preview,
				SentAt:     time.Now(),
			})
		}
	}
}

// pushUnreadCount 异步推送最新未读数到用户个人频道
func (s *chatServiceImpl) pushUnreadCount(userID uint64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		count, err := s.roomRepo.UnreadRoomCount(ctx, userID)
		if err != nil {
			log.Error("查询未读数失败", "user_id", userID, "err", err)
			return
		}
		s.publishToUser(ctx, userID, dto.EvChatCount, &dto.ChatCountDTO{UserID: userID, Count: count})
	}()
}

func (s *chatServiceImpl) publishToRoom(ctx context.Context, roomID uint64, eventType string, data interface{}) {
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

func (s *chatServiceImpl) publishToUser(ctx context.Context, userID uint64, eventType string, data interface{}) {
	payload, err := json.Marshal(&dto.WsEvent{Type: eventType, Data: data})
	if err != nil {
		log.ErrorContext(ctx, "事件序列化失败", "type", eventType, "err", err)
		return
	}
	channel := consts.ChatUserChannel + strconv.FormatUint(userID, 10)
	if err := s.publisher.Publish(ctx, channel, payload); err != nil {
		log.ErrorContext(ctx, "个人频道推送失败", "channel", channel, "type", eventType, "err", err)
	}
}

// persistRetryWorker Mongo 写入失败的补偿：指数退避重试
func (s *chatServiceImpl) persistRetryWorker() {
	defer s.wg.Done()
	for {
		select {
		case msg := <-s.retryChan:
			backoff := time.Second
			for i := 0; i < 3; i++ {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := s.messageRepo.SaveMessage(ctx, msg)
				cancel()
				if err == nil {
					break
				}
				select {
				case <-time.After(backoff):
					backoff *= 2
				case <-s.stopChan:
					return
				}
			}
		case <-s.stopChan:
			return
		}
	}
}

// directPairKey 直聊房间的规范键：小 ID 在前
func directPairKey(a, b uint64) string {
	if a < b {
		return fmt.Sprintf("%d_%d", a, b)
	}
	return fmt.Sprintf("%d_%d", b, a)
}

// parsePeerID 从 pair_key 解析直聊对端
func parsePeerID(pairKey string, currentUserID uint64) (uint64, error) {
	var u1, u2 uint64
	if _, err := fmt.Sscanf(pairKey, "%d_%d", &u1, &u2); err != nil {
		return 0, err
	}
	if u1 == currentUserID {
		return u2, nil
	}
	return u1, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func toMessageDTO(m *mongo.ChatMessage) *dto.MessageDTO {
	var d dto.MessageDTO
	_ = copier.Copy(&d, m)
	return &d
}

func toChatRoomDTO(room *model.ChatRoom) *dto.ChatRoomDTO {
	return &dto.ChatRoomDTO{
		RoomID:        room.ID,
		IsSupportRoom: room.IsSupportRoom == 1,
		RoomOwnerID:   room.RoomOwnerID,
		SupporterID:   room.SupporterID,
		LastMessage:   room.LastMessage,
		LastSenderID:  room.LastSenderID,
		LastMessageAt: room.LastMessageAt,
		CreatedAt:     room.CreatedAt,
	}
}
