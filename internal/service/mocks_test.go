package service

import (
	"PetCare/internal/api/dto"
	"PetCare/internal/model"
	"PetCare/internal/pkg/directory"
	"PetCare/internal/pkg/mongo"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
)

// fakeRoomRepo 内存实现，语义对齐 MySQL 版本：
// pair_key 唯一冲突、定序事务、条件认领更新。
type fakeRoomRepo struct {
	mu           sync.Mutex
	nextID       uint64
	rooms        map[uint64]*model.ChatRoom
	participants []*model.ChatParticipant
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{nextID: 1, rooms: make(map[uint64]*model.ChatRoom)}
}

func (f *fakeRoomRepo) CreateRoom(_ context.Context, room *model.ChatRoom) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rooms {
		if r.PairKey == room.PairKey {
			return gorm.ErrDuplicatedKey
		}
	}
	room.ID = f.nextID
	f.nextID++
	room.CreatedAt = time.Now()
	cp := *room
	f.rooms[room.ID] = &cp
	return nil
}

func (f *fakeRoomRepo) CreateParticipants(_ context.Context, ps []*model.ChatParticipant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range ps {
		cp := *p
		f.participants = append(f.participants, &cp)
	}
	return nil
}

func (f *fakeRoomRepo) GetRoom(_ context.Context, roomID uint64) (*model.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok || r.IsDeleted == 1 {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRoomRepo) GetRoomByPairKey(_ context.Context, pairKey string) (*model.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rooms {
		if r.PairKey == pairKey && r.IsDeleted == 0 {
			cp := *r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRoomRepo) IsParticipant(_ context.Context, roomID, userID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.participants {
		if p.RoomID == roomID && p.UserID == userID && p.IsLeave == 0 {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRoomRepo) GetRoomParticipants(_ context.Context, roomID uint64) ([]*model.ChatParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*model.ChatParticipant
	for _, p := range f.participants {
		if p.RoomID == roomID && p.IsLeave == 0 {
			cp := *p
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (f *fakeRoomRepo) GetUserRoomList(_ context.Context, userID uint64) ([]*model.ChatParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*model.ChatParticipant
	for _, p := range f.participants {
		if p.UserID != userID || p.IsLeave == 1 {
			continue
		}
		room, ok := f.rooms[p.RoomID]
		if !ok || room.IsDeleted == 1 {
			continue
		}
		cp := *p
		cp.Room = *room
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Room.LastMessageAt.After(res[j].Room.LastMessageAt)
	})
	return res, nil
}

func (f *fakeRoomRepo) IncrMaxSeq(_ context.Context, roomID uint64, lastMsg string, senderID uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok || room.IsDeleted == 1 {
		return 0, gorm.ErrRecordNotFound
	}
	room.MaxMsgSeq++
	room.LastMessage = lastMsg
	room.LastSenderID = senderID
	room.LastMessageAt = time.Now()
	for _, p := range f.participants {
		if p.RoomID != roomID {
			continue
		}
		if p.UserID == senderID {
			p.IsSeen = 1
		} else {
			p.IsSeen = 0
		}
	}
	return room.MaxMsgSeq, nil
}

func (f *fakeRoomRepo) MarkSeen(_ context.Context, roomID, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.participants {
		if p.RoomID == roomID && p.UserID == userID {
			p.IsSeen = 1
		}
	}
	return nil
}

func (f *fakeRoomRepo) UnreadRoomCount(_ context.Context, userID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, p := range f.participants {
		if p.UserID != userID || p.IsLeave == 1 || p.IsSeen == 1 {
			continue
		}
		room, ok := f.rooms[p.RoomID]
		if !ok || room.IsDeleted == 1 {
			continue
		}
		if room.MaxMsgSeq > 0 && room.LastSenderID != userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRoomRepo) ListPendingSupportRooms(_ context.Context) ([]*model.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*model.ChatRoom
	for _, r := range f.rooms {
		if r.IsSupportRoom == 1 && r.SupporterID == 0 && r.IsDeleted == 0 {
			cp := *r
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (f *fakeRoomRepo) ClaimSupporter(_ context.Context, roomID, staffID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok || room.SupporterID != 0 {
		return false, nil
	}
	room.SupporterID = staffID
	return true, nil
}

func (f *fakeRoomRepo) ReleaseSupporter(_ context.Context, roomID, staffID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok || room.SupporterID == 0 {
		return false, nil
	}
	if staffID != 0 && room.SupporterID != staffID {
		return false, nil
	}
	released := room.SupporterID
	room.SupporterID = 0
	for _, p := range f.participants {
		if p.RoomID == roomID && p.UserID == released {
			p.IsLeave = 1
		}
	}
	return true, nil
}

func (f *fakeRoomRepo) UpsertSupporterParticipant(_ context.Context, roomID, staffID, serveFor uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.participants {
		if p.RoomID == roomID && p.UserID == staffID {
			p.IsLeave = 0
			p.IsSupporter = 1
			p.ServeFor = serveFor
			return nil
		}
	}
	f.participants = append(f.participants, &model.ChatParticipant{
		RoomID:      roomID,
		UserID:      staffID,
		ServeFor:    serveFor,
		IsSeen:      1,
		IsSupporter: 1,
		JoinedAt:    time.Now(),
	})
	return nil
}

// fakeMessageRepo 内存消息明细
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []*mongo.ChatMessage
	failSave bool
}

func (f *fakeMessageRepo) SaveMessage(_ context.Context, msg *mongo.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return fmt.Errorf("mongo unavailable")
	}
	cp := *msg
	f.messages = append(f.messages, &cp)
	return nil
}

func (f *fakeMessageRepo) GetHistory(_ context.Context, roomID, lastSeq uint64, pageSize int) ([]*mongo.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*mongo.ChatMessage
	for _, m := range f.messages {
		if m.RoomID != roomID {
			continue
		}
		if lastSeq > 0 && m.Seq >= lastSeq {
			continue
		}
		cp := *m
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Seq > res[j].Seq })
	if len(res) > pageSize {
		res = res[:pageSize]
	}
	return res, nil
}

// fakeRegistry 固定的在线用户集合
type fakeRegistry struct {
	online map[uint64]string
}

func (f *fakeRegistry) Lookup(userID uint64) (string, bool) {
	connID, ok := f.online[userID]
	return connID, ok
}

// recordedEvent 解析后的出站事件
type recordedEvent struct {
	Channel string
	Type    string
	Raw     json.RawMessage
}

// recordingPublisher 记录全部出站事件供断言
type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	_ = json.Unmarshal(payload, &env)
	p.events = append(p.events, recordedEvent{Channel: channel, Type: env.Type, Raw: env.Data})
	return nil
}

func (p *recordingPublisher) byType(eventType string) []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var res []recordedEvent
	for _, e := range p.events {
		if e.Type == eventType {
			res = append(res, e)
		}
	}
	return res
}

// fakeNotifier 记录离线通知
type fakeNotifier struct {
	mu            sync.Mutex
	notifications []*dto.OfflineNotificationDTO
}

func (f *fakeNotifier) NotifyOffline(n *dto.OfflineNotificationDTO) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
}

func (f *fakeNotifier) Close() {}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notifications)
}

// fakeDirectory 固定展示名
type fakeDirectory struct{}

func (fakeDirectory) GetUserSummary(_ context.Context, userID uint64) (*directory.UserSummary, error) {
	return &directory.UserSummary{UserID: userID, Name: fmt.Sprintf("用户%d", userID)}, nil
}
