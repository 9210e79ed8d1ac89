package repository

import (
	"PetCare/internal/model"
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type ChatRoomRepo interface {
	CreateRoom(ctx context.Context, room *model.ChatRoom) error
	CreateParticipants(ctx context.Context, participants []*model.ChatParticipant) error
	GetRoom(ctx context.Context, roomID uint64) (*model.ChatRoom, error)
	GetRoomByPairKey(ctx context.Context, pairKey string) (*model.ChatRoom, error)
	IsParticipant(ctx context.Context, roomID uint64, userID uint64) (bool, error)
	GetRoomParticipants(ctx context.Context, roomID uint64) ([]*model.ChatParticipant, error)
	GetUserRoomList(ctx context.Context, userID uint64) ([]*model.ChatParticipant, error)

	IncrMaxSeq(ctx context.Context, roomID uint64, lastMsg string, senderID uint64) (uint64, error)
	MarkSeen(ctx context.Context, roomID uint64, userID uint64) error
	UnreadRoomCount(ctx context.Context, userID uint64) (int64, error)

	ListPendingSupportRooms(ctx context.Context) ([]*model.ChatRoom, error)
	ClaimSupporter(ctx context.Context, roomID uint64, staffID uint64) (bool, error)
	ReleaseSupporter(ctx context.Context, roomID uint64, staffID uint64) (bool, error)
	UpsertSupporterParticipant(ctx context.Context, roomID uint64, staffID uint64, serveFor uint64) error
}

type chatRoomRepoImpl struct {
	db *gorm.DB
}

func NewChatRoomRepo(db *gorm.DB) ChatRoomRepo {
	return &chatRoomRepoImpl{db: db}
}

func (s *chatRoomRepoImpl) CreateRoom(ctx context.Context, room *model.ChatRoom) error {
	return errors.Wrap(s.db.WithContext(ctx).Create(room).Error, "create chat room")
}

// CreateParticipants 写入成员行。
// 按协定这里不与建房操作共享事务，上层对第二步失败只上报不重试。
func (s *chatRoomRepoImpl) CreateParticipants(ctx context.Context, participants []*model.ChatParticipant) error {
	for _, p := range participants {
		if p.JoinedAt.IsZero() {
			p.JoinedAt = time.Now()
		}
	}
	return errors.Wrap(s.db.WithContext(ctx).Create(&participants).Error, "create participants")
}

func (s *chatRoomRepoImpl) GetRoom(ctx context.Context, roomID uint64) (*model.ChatRoom, error) {
	var room model.ChatRoom
	err := s.db.WithContext(ctx).Where("is_deleted = 0").First(&room, roomID).Error
	return &room, err
}

func (s *chatRoomRepoImpl) GetRoomByPairKey(ctx context.Context, pairKey string) (*model.ChatRoom, error) {
	var room model.ChatRoom
	err := s.db.WithContext(ctx).Where("pair_key = ? AND is_deleted = 0", pairKey).First(&room).Error
	return &room, err
}

// IsParticipant 检查用户是否为房间在场成员
func (s *chatRoomRepoImpl) IsParticipant(ctx context.Context, roomID uint64, userID uint64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.ChatParticipant{}).
		Where("room_id = ? AND user_id = ? AND is_leave = 0", roomID, userID).
		Count(&count).Error
	return count > 0, err
}

func (s *chatRoomRepoImpl) GetRoomParticipants(ctx context.Context, roomID uint64) ([]*model.ChatParticipant, error) {
	var participants []*model.ChatParticipant
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND is_leave = 0", roomID).
		Find(&participants).Error
	return participants, errors.Wrap(err, "get room participants")
}

// GetUserRoomList 联表查询，利用 Room__ 别名配合 GORM 的嵌套填充特性
func (s *chatRoomRepoImpl) GetUserRoomList(ctx context.Context, userID uint64) ([]*model.ChatParticipant, error) {
	var participants []*model.ChatParticipant
	err := s.db.WithContext(ctx).Table("chat_participants p").
		Select("p.*, "+
			"r.id AS `Room__id`, r.pair_key AS `Room__pair_key`, "+
			"r.is_support_room AS `Room__is_support_room`, "+
			"r.room_owner_id AS `Room__room_owner_id`, "+
			"r.supporter_id AS `Room__supporter_id`, "+
			"r.max_msg_seq AS `Room__max_msg_seq`, "+
			"r.last_message AS `Room__last_message`, "+
			"r.last_sender_id AS `Room__last_sender_id`, "+
			"r.last_message_at AS `Room__last_message_at`").
		Joins("JOIN chat_rooms r ON p.room_id = r.id").
		Where("p.user_id = ? AND p.is_leave = 0 AND r.is_deleted = 0", userID).
		Order("r.last_message_at DESC").
		Find(&participants).Error
	return participants, errors.Wrap(err, "get user room list")
}

// IncrMaxSeq 核心定序逻辑：利用 MySQL 行锁确保房间内 Seq 绝对递增，
// 并在同一事务里落库消息摘要与成员已读标记，读方不会看到两者分裂的中间态。
func (s *chatRoomRepoImpl) IncrMaxSeq(ctx context.Context, roomID uint64, lastMsg string, senderID uint64) (uint64, error) {
	var maxSeq uint64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.ChatRoom{}).
			Where("id = ? AND is_deleted = 0", roomID).
			Updates(map[string]interface{}{
				"max_msg_seq":     gorm.Expr("max_msg_seq + 1"),
				"last_message":    lastMsg,
				"last_sender_id":  senderID,
				"last_message_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		// 新消息到达，除发送者外全部成员置为未读
		if err := tx.Model(&model.ChatParticipant{}).
			Where("room_id = ? AND user_id <> ?", roomID, senderID).
			Update("is_seen", 0).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.ChatParticipant{}).
			Where("room_id = ? AND user_id = ?", roomID, senderID).
			Update("is_seen", 1).Error; err != nil {
			return err
		}

		return tx.Model(&model.ChatRoom{}).Select("max_msg_seq").
			Where("id = ?", roomID).Scan(&maxSeq).Error
	})
	return maxSeq, err
}

// MarkSeen 用户打开房间后标记已读
func (s *chatRoomRepoImpl) MarkSeen(ctx context.Context, roomID uint64, userID uint64) error {
	err := s.db.WithContext(ctx).Model(&model.ChatParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("is_seen", 1).Error
	return errors.Wrap(err, "mark seen")
}

// UnreadRoomCount 统计存在未读消息的房间数：成员未读、且最后一条不是自己发的
func (s *chatRoomRepoImpl) UnreadRoomCount(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Table("chat_participants p").
		Joins("JOIN chat_rooms r ON p.room_id = r.id").
		Where("p.user_id = ? AND p.is_leave = 0 AND p.is_seen = 0", userID).
		Where("r.is_deleted = 0 AND r.max_msg_seq > 0 AND r.last_sender_id <> ?", userID).
		Count(&count).Error
	return count, errors.Wrap(err, "unread room count")
}

// ListPendingSupportRooms 待认领的客服会话：尚无客服接手的房间
func (s *chatRoomRepoImpl) ListPendingSupportRooms(ctx context.Context) ([]*model.ChatRoom, error) {
	var rooms []*model.ChatRoom
	err := s.db.WithContext(ctx).
		Where("is_support_room = 1 AND supporter_id = 0 AND is_deleted = 0").
		Order("created_at ASC").
		Find(&rooms).Error
	return rooms, errors.Wrap(err, "list pending support rooms")
}

// ClaimSupporter 条件更新实现乐观并发：只有当前无人认领时才写得进去，
// RowsAffected 为 0 即认领失败。多实例部署下以数据库为准，不靠进程内锁。
func (s *chatRoomRepoImpl) ClaimSupporter(ctx context.Context, roomID uint64, staffID uint64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.ChatRoom{}).
		Where("id = ? AND is_support_room = 1 AND supporter_id = 0 AND is_deleted = 0", roomID).
		Update("supporter_id", staffID)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "claim supporter")
	}
	return res.RowsAffected == 1, nil
}

// ReleaseSupporter 释放当前客服并停用其成员行，房间回到未分配状态。
// staffID 为 0 时释放任意客服（顾客发起的更换），否则仅当 staffID 持有房间时生效。
func (s *chatRoomRepoImpl) ReleaseSupporter(ctx context.Context, roomID uint64, staffID uint64) (bool, error) {
	var released bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&model.ChatRoom{}).
			Where("id = ? AND is_support_room = 1 AND supporter_id <> 0 AND is_deleted = 0", roomID)
		if staffID != 0 {
			q = q.Where("supporter_id = ?", staffID)
		}
		res := q.Update("supporter_id", 0)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		released = true
		return tx.Model(&model.ChatParticipant{}).
			Where("room_id = ? AND is_supporter = 1 AND is_leave = 0", roomID).
			Update("is_leave", 1).Error
	})
	return released, errors.Wrap(err, "release supporter")
}

// UpsertSupporterParticipant 新客服入驻：已有成员行则复活，否则新建
func (s *chatRoomRepoImpl) UpsertSupporterParticipant(ctx context.Context, roomID uint64, staffID uint64, serveFor uint64) error {
	var existing model.ChatParticipant
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, staffID).
		First(&existing).Error
	if err == nil {
		updates := map[string]interface{}{
			"is_leave":     0,
			"is_supporter": 1,
			"is_seen":      0,
			"serve_for":    serveFor,
		}
		return errors.Wrap(s.db.WithContext(ctx).Model(&existing).Updates(updates).Error, "reactivate supporter participant")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(err, "lookup supporter participant")
	}

	participant := &model.ChatParticipant{
		RoomID:      roomID,
		UserID:      staffID,
		ServeFor:    serveFor,
		IsSeen:      0,
		IsSupporter: 1,
		JoinedAt:    time.Now(),
	}
	return errors.Wrap(s.db.WithContext(ctx).Create(participant).Error, "create supporter participant")
}
