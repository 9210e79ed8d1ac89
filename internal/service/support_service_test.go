package service

import (
	"PetCare/internal/api/dto"
	"PetCare/internal/model"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type supportFixture struct {
	svc       SupportService
	roomRepo  *fakeRoomRepo
	publisher *recordingPublisher
}

func newSupportFixture() *supportFixture {
	f := &supportFixture{
		roomRepo:  newFakeRoomRepo(),
		publisher: &recordingPublisher{},
	}
	f.svc = NewSupportService(f.roomRepo, f.publisher, fakeDirectory{})
	return f
}

func TestInitiateSupportChatRoom_Idempotent(t *testing.T) {
	f := newSupportFixture()
	ctx := context.Background()

	room1, created, err := f.svc.InitiateSupportChatRoom(ctx, 10)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, room1.IsSupportRoom)
	assert.Equal(t, uint64(10), room1.RoomOwnerID)

	room2, created, err := f.svc.InitiateSupportChatRoom(ctx, 10)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, room1.RoomID, room2.RoomID)
}

func TestInitiateSupportChatRoom_BroadcastsPendingList(t *testing.T) {
	f := newSupportFixture()
	_, _, err := f.svc.InitiateSupportChatRoom(context.Background(), 10)
	require.NoError(t, err)

	events := f.publisher.byType(dto.EvUpdatePendingSupportRequests)
	require.NotEmpty(t, events)
}

func TestGetPendingSupportRequests_OrderedWithNames(t *testing.T) {
	f := newSupportFixture()
	ctx := context.Background()

	_, _, err := f.svc.InitiateSupportChatRoom(ctx, 10)
	require.NoError(t, err)
	_, _, err = f.svc.InitiateSupportChatRoom(ctx, 11)
	require.NoError(t, err)

	pending, err := f.svc.GetPendingSupportRequests(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, uint64(10), pending[0].CustomerID)
	assert.Equal(t, "用户10", pending[0].CustomerName)
}

func TestAssignStaff_ConcurrentClaimSingleWinner(t *testing.T) {
	f := newSupportFixture()
	ctx := context.Background()

	room, _, err := f.svc.InitiateSupportChatRoom(ctx, 10)
	require.NoError(t, err)

	const staffCount = 8
	var wg sync.WaitGroup
	errs := make([]error, staffCount)
	for i := 0; i < staffCount; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.AssignStaffToChatRoom(ctx, room.RoomID, uint64(100+i), 10)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrSupporterTaken)
		}
	}
	assert.Equal(t, 1, winners)

	// 已认领的工单不再出现在待接列表里
	pending, err := f.svc.GetPendingSupportRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAssignStaff_NonSupportRoomRejected(t *testing.T) {
	f := newSupportFixture()
	ctx := context.Background()

	direct := &model.ChatRoom{PairKey: "1_2"}
	require.NoError(t, f.roomRepo.CreateRoom(ctx, direct))

	err := f.svc.AssignStaffToChatRoom(ctx, direct.ID, 100, 0)
	assert.ErrorIs(t, err, ErrNotSupportRoom)
}

func TestRequestNewSupporter_RequeuesRoom(t *testing.T) {
	f := newSupportFixture()
	ctx := context.Background()

	room, _, err := f.svc.InitiateSupportChatRoom(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, f.svc.AssignStaffToChatRoom(ctx, room.RoomID, 100, 10))

	// 未分配时换人请求失败
	require.NoError(t, f.svc.RequestNewSupporter(ctx, room.RoomID, 10))
	err = f.svc.RequestNewSupporter(ctx, room.RoomID, 10)
	assert.ErrorIs(t, err, ErrNoSupporterAssigned)

	// 回到队列，可被再次认领
	pending, err := f.svc.GetPendingSupportRequests(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, f.svc.AssignStaffToChatRoom(ctx, room.RoomID, 101, 10))

	stored, err := f.roomRepo.GetRoom(ctx, room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), stored.SupporterID)
}

func TestRemoveStaff_OnlyHolderCanLeave(t *testing.T) {
	f := newSupportFixture()
	ctx := context.Background()

	room, _, err := f.svc.InitiateSupportChatRoom(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, f.svc.AssignStaffToChatRoom(ctx, room.RoomID, 100, 10))

	// 非持有人撤席被拒
	err = f.svc.RemoveStaffFromChatRoom(ctx, room.RoomID, 101)
	assert.ErrorIs(t, err, ErrNoSupporterAssigned)

	require.NoError(t, f.svc.RemoveStaffFromChatRoom(ctx, room.RoomID, 100))

	stored, err := f.roomRepo.GetRoom(ctx, room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stored.SupporterID)

	// 撤席后广播过换人事件
	assert.NotEmpty(t, f.publisher.byType(dto.EvNewSupporterRequested))
}
