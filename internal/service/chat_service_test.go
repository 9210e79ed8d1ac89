package service

import (
	"PetCare/internal/api/dto"
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	svc       ChatService
	roomRepo  *fakeRoomRepo
	msgRepo   *fakeMessageRepo
	registry  *fakeRegistry
	publisher *recordingPublisher
	notifier  *fakeNotifier
}

func newChatFixture(online ...uint64) *chatFixture {
	reg := &fakeRegistry{online: make(map[uint64]string)}
	for _, id := range online {
		reg.online[id] = "conn-" + time.Now().String()
	}
	f := &chatFixture{
		roomRepo:  newFakeRoomRepo(),
		msgRepo:   &fakeMessageRepo{},
		registry:  reg,
		publisher: &recordingPublisher{},
		notifier:  &fakeNotifier{},
	}
	f.svc = NewChatService(f.roomRepo, f.msgRepo, f.registry, f.publisher, f.notifier, fakeDirectory{})
	return f
}

func TestCreateOrGetDirectRoom_Idempotent(t *testing.T) {
	f := newChatFixture()
	defer f.svc.Close()
	ctx := context.Background()

	room1, created, err := f.svc.CreateOrGetDirectRoom(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, created)

	// 反向参数也命中同一房间
	room2, created, err := f.svc.CreateOrGetDirectRoom(ctx, 2, 1)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, room1.RoomID, room2.RoomID)
}

func TestCreateOrGetDirectRoom_SelfChatRejected(t *testing.T) {
	f := newChatFixture()
	defer f.svc.Close()

	_, _, err := f.svc.CreateOrGetDirectRoom(context.Background(), 7, 7)
	assert.ErrorIs(t, err, ErrSelfChat)
}

func TestSendMessage_SeqAndSummaryAdvanceTogether(t *testing.T) {
	f := newChatFixture(1, 2)
	defer f.svc.Close()
	ctx := context.Background()

	room, _, err := f.svc.CreateOrGetDirectRoom(ctx, 1, 2)
	require.NoError(t, err)

	msg1, err := f.svc.SendMessage(ctx, 1, &dto.SendMessageReq{RoomID: room.RoomID, Text: "第一条"})
	require.NoError(t, err)
	msg2, err := f.svc.SendMessage(ctx, 2, &dto.SendMessageReq{RoomID: room.RoomID, Text: "第二条"})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), msg1.Seq)
	assert.Equal(t, uint64(2), msg2.Seq)

	stored, err := f.roomRepo.GetRoom(ctx, room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stored.MaxMsgSeq)
	assert.Equal(t, "第二条", stored.LastMessage)
	assert.Equal(t, uint64(2), stored.LastSenderID)
}

func TestSendMessage_RoomNotFound(t *testing.T) {
	f := newChatFixture()
	defer f.svc.Close()

	_, err := f.svc.SendMessage(context.Background(), 1, &dto.SendMessageReq{RoomID: 404, Text: "hi"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
	// 失败不产生任何广播
	assert.Empty(t, f.publisher.byType(dto.EvReceiveMessage))
}

func TestSendMessage_NonMemberRejected(t *testing.T) {
	f := newChatFixture()
	defer f.svc.Close()
	ctx := context.Background()

	room, _, err := f.svc.CreateOrGetDirectRoom(ctx, 1, 2)
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, 99, &dto.SendMessageReq{RoomID: room.RoomID, Text: "hi"})
	assert.ErrorIs(t, err, ErrNotRoomMember)
}

func TestSendMessage_EmptyRejected(t *testing.T) {
	f := newChatFixture()
	defer f.svc.Close()

	_, err := f.svc.SendMessage(context.Background(), 1, &dto.SendMessageReq{RoomID: 1})
	assert.ErrorIs(t, err, ErrMessageEmpty)
}

func TestSendMessage_BroadcastAndListRefresh(t *testing.T) {
	f := newChatFixture(1, 2)
	defer f.svc.Close()
	ctx := context.Background()

	room, _, err := f.svc.CreateOrGetDirectRoom(ctx, 1, 2)
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, 1, &dto.SendMessageReq{RoomID: room.RoomID, Text: "你好"})
	require.NoError(t, err)

	received := f.publisher.byType(dto.EvReceiveMessage)
	require.Len(t, received, 1)
	var msg dto.MessageDTO
	require.NoError(t, json.Unmarshal(received[0].Raw, &msg))
	assert.Equal(t, "你好", msg.Text)
	assert.Equal(t, uint64(1), msg.Seq)

	// 双方在线，各收到一次房间列表刷新
	assert.Len(t, f.publisher.byType(dto.EvGetList), 2)
	assert.Equal(t, 0, f.notifier.count())
}

func TestSendMessage_OfflineReceiverNotified(t *testing.T) {
	f := newChatFixture(1) // 只有发送方在线
	defer f.svc.Close()
	ctx := context.Background()

	room, _, err := f.svc.CreateOrGetDirectRoom(ctx, 1, 2)
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, 1, &dto.SendMessageReq{RoomID: room.RoomID, Text: "在吗"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.notifier.count())
	assert.Equal(t, uint64(2), f.notifier.notifications[0].ReceiverID)
}

func TestGetChatMessages_MarkSeenAndUnreadCount(t *testing.T) {
	f := newChatFixture(1, 2)
	defer f.svc.Close()
	ctx := context.Background()

	room, _, err := f.svc.CreateOrGetDirectRoom(ctx, 1, 2)
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, 1, &dto.SendMessageReq{RoomID: room.RoomID, Text: "未读"})
	require.NoError(t, err)

	count, err := f.svc.GetUnreadNotificationCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	messages, err := f.svc.GetChatMessages(ctx, 2, room.RoomID, 0, 20)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "未读", messages[0].Text)

	count, err = f.svc.GetUnreadNotificationCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestGetChatMessages_GapPatchedFromSummary(t *testing.T) {
	f := newChatFixture(1, 2)
	f.msgRepo.failSave = true // 明细库不可用，只有摘要前进
	defer f.svc.Close()
	ctx := context.Background()

	room, _, err := f.svc.CreateOrGetDirectRoom(ctx, 1, 2)
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, 1, &dto.SendMessageReq{RoomID: room.RoomID, Text: "只剩摘要"})
	require.NoError(t, err)

	messages, err := f.svc.GetChatMessages(ctx, 2, room.RoomID, 0, 20)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "只剩摘要", messages[0].Text)
	assert.Equal(t, room.RoomID, messages[0].RoomID)
}

func TestGetChatRoomList_PeerResolved(t *testing.T) {
	f := newChatFixture()
	defer f.svc.Close()
	ctx := context.Background()

	_, _, err := f.svc.CreateOrGetDirectRoom(ctx, 1, 2)
	require.NoError(t, err)

	list, err := f.svc.GetChatRoomList(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint64(2), list[0].PeerID)
	assert.Equal(t, "用户2", list[0].PeerName)
	assert.False(t, list[0].IsSupportRoom)
}
