package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestHandleJoinBackfillsReceipts(t *testing.T) {
	hub, gw := newTestHub(t)

	unread := []bson.ObjectID{bson.NewObjectID(), bson.NewObjectID()}
	gw.setUnread("conv-1", "bob", unread...)

	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.Register(alice)
	hub.Register(bob)
	hub.JoinRoom(alice, "conv-1")

	hub.Route(bob, IncomingEvent{Type: EventJoinConversation, ConversationID: "conv-1"})

	require.Len(t, gw.receiptUsers, 1)
	assert.Equal(t, "bob", gw.receiptUsers[0])
	assert.Equal(t, unread, gw.receiptIDs[0])

	// the rest of the room learns the messages were read; the joiner does not
	evt := nextEvent(t, alice, EventMessagesRead)
	assert.Equal(t, "bob", dataField(t, evt, "userId"))
	assert.Equal(t, "conv-1", dataField(t, evt, "conversationId"))
	assertNoEvent(t, bob, EventMessagesRead)
	assert.True(t, bob.InRoom("conv-1"))
}

func TestHandleJoinRejoinInsertsNoDuplicateReceipts(t *testing.T) {
	hub, gw := newTestHub(t)

	unread := []bson.ObjectID{bson.NewObjectID(), bson.NewObjectID()}
	gw.setUnread("conv-1", "bob", unread...)

	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.Register(alice)
	hub.Register(bob)
	hub.JoinRoom(alice, "conv-1")

	hub.Route(bob, IncomingEvent{Type: EventJoinConversation, ConversationID: "conv-1"})
	nextEvent(t, alice, EventMessagesRead)
	require.Len(t, gw.receiptUsers, 1)

	// leaving and immediately rejoining must not receipt the same messages again
	hub.Route(bob, IncomingEvent{Type: EventLeaveConversation, ConversationID: "conv-1"})
	hub.Route(bob, IncomingEvent{Type: EventJoinConversation, ConversationID: "conv-1"})

	assert.Len(t, gw.receiptUsers, 1)
	assertNoEvent(t, alice, EventMessagesRead)
	assert.True(t, bob.InRoom("conv-1"))

	// a message that arrived since is the only one receipted on the next join
	fresh := bson.NewObjectID()
	gw.setUnread("conv-1", "bob", append(unread, fresh)...)

	hub.Route(bob, IncomingEvent{Type: EventLeaveConversation, ConversationID: "conv-1"})
	hub.Route(bob, IncomingEvent{Type: EventJoinConversation, ConversationID: "conv-1"})

	require.Len(t, gw.receiptIDs, 2)
	assert.Equal(t, []bson.ObjectID{fresh}, gw.receiptIDs[1])
	nextEvent(t, alice, EventMessagesRead)
}

func TestHandleJoinWithNothingUnreadStaysSilent(t *testing.T) {
	hub, gw := newTestHub(t)

	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.Register(alice)
	hub.Register(bob)
	hub.JoinRoom(alice, "conv-1")

	hub.Route(bob, IncomingEvent{Type: EventJoinConversation, ConversationID: "conv-1"})

	assert.Empty(t, gw.receiptUsers)
	assertNoEvent(t, alice, EventMessagesRead)
}

func TestHandleJoinRequiresConversationID(t *testing.T) {
	hub, _ := newTestHub(t)

	bob := newTestClient(hub, "bob")
	hub.Register(bob)

	hub.Route(bob, IncomingEvent{Type: EventJoinConversation})

	nextEvent(t, bob, EventError)
}

func TestHandleSendMessagePersistsThenBroadcasts(t *testing.T) {
	hub, gw := newTestHub(t)

	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.Register(alice)
	hub.Register(bob)
	hub.JoinRoom(alice, "conv-1")
	hub.JoinRoom(bob, "conv-1")

	hub.Route(alice, IncomingEvent{
		Type:           EventSendMessage,
		ConversationID: "conv-1",
		ReceiverID:     "bob",
		Content:        "hello",
	})

	require.Equal(t, 1, gw.createCount())
	assert.Equal(t, []string{"conv-1"}, gw.touched)

	// both members receive the broadcast, sender included
	for _, c := range []*Client{alice, bob} {
		evt := nextEvent(t, c, EventNewMessage)
		assert.Equal(t, "hello", dataField(t, evt, "content"))
		assert.Equal(t, "alice", dataField(t, evt, "senderId"))
		assert.NotEmpty(t, dataField(t, evt, "id"))
	}
}

func TestHandleSendMessageRequiresRoomMembership(t *testing.T) {
	hub, gw := newTestHub(t)

	alice := newTestClient(hub, "alice")
	hub.Register(alice)

	hub.Route(alice, IncomingEvent{
		Type:           EventSendMessage,
		ConversationID: "conv-1",
		ReceiverID:     "bob",
		Content:        "hello",
	})

	nextEvent(t, alice, EventError)
	assert.Equal(t, 0, gw.createCount())
}

func TestHandleSendMessagePersistFailureSurfacesToSenderOnly(t *testing.T) {
	hub, gw := newTestHub(t)
	gw.failCreate = true

	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.Register(alice)
	hub.Register(bob)
	hub.JoinRoom(alice, "conv-1")
	hub.JoinRoom(bob, "conv-1")

	hub.Route(alice, IncomingEvent{
		Type:           EventSendMessage,
		ConversationID: "conv-1",
		ReceiverID:     "bob",
		Content:        "hello",
	})

	nextEvent(t, alice, EventError)
	assertNoEvent(t, bob, EventNewMessage)
	assertNoEvent(t, bob, EventError)

	// exactly one attempt, no retry
	assert.Equal(t, 1, gw.createCount())
	assert.Empty(t, gw.touched)
}

func TestHandleSendMessageNotifiesReceiverOutsideRoom(t *testing.T) {
	hub, gw := newTestHub(t)

	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.Register(alice)
	hub.Register(bob) // online, sitting on the chat list, not in the room
	hub.JoinRoom(alice, "conv-1")

	hub.Route(alice, IncomingEvent{
		Type:           EventSendMessage,
		ConversationID: "conv-1",
		ReceiverID:     "bob",
		Content:        "hello",
	})

	require.Equal(t, 1, gw.createCount())

	evt := nextEvent(t, bob, EventNotification)
	assert.Equal(t, "conv-1", evt.ConversationID)
	assert.Equal(t, EventNewMessage, dataField(t, evt, "type"))
	assertNoEvent(t, bob, EventNewMessage)
}

func TestHandleSendMessageDefaultsUnknownKindToText(t *testing.T) {
	hub, gw := newTestHub(t)

	alice := newTestClient(hub, "alice")
	hub.Register(alice)
	hub.JoinRoom(alice, "conv-1")

	hub.Route(alice, IncomingEvent{
		Type:           EventSendMessage,
		ConversationID: "conv-1",
		ReceiverID:     "bob",
		Content:        "hello",
		MessageType:    "CARRIER_PIGEON",
	})

	require.Equal(t, 1, gw.createCount())
	assert.Equal(t, "TEXT", string(gw.created[0].Kind))
}

func TestHandleTypingRelaysToRoomExceptSender(t *testing.T) {
	hub, gw := newTestHub(t)

	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.Register(alice)
	hub.Register(bob)
	hub.JoinRoom(alice, "conv-1")
	hub.JoinRoom(bob, "conv-1")

	hub.Route(alice, IncomingEvent{Type: EventTyping, ConversationID: "conv-1", IsTyping: true})

	evt := nextEvent(t, bob, EventUserTyping)
	assert.Equal(t, "alice", dataField(t, evt, "userId"))
	assert.Equal(t, true, dataField(t, evt, "isTyping"))
	assertNoEvent(t, alice, EventUserTyping)
	assert.Equal(t, []string{"conv-1|alice"}, gw.typingUpserts)

	hub.Route(alice, IncomingEvent{Type: EventTyping, ConversationID: "conv-1", IsTyping: false})

	evt = nextEvent(t, bob, EventUserTyping)
	assert.Equal(t, false, dataField(t, evt, "isTyping"))
	assert.Equal(t, []string{"conv-1|alice"}, gw.typingDeletes)
}

func TestHandlePresenceEvents(t *testing.T) {
	hub, gw := newTestHub(t)

	watcher := newTestClient(hub, "")
	hub.Register(watcher)

	alice := newTestClient(hub, "alice")
	hub.Register(alice)
	nextEvent(t, watcher, EventUserStatusChanged)

	hub.Route(alice, IncomingEvent{Type: EventUserOffline})

	evt := nextEvent(t, watcher, EventUserStatusChanged)
	assert.Equal(t, false, dataField(t, evt, "isOnline"))
	assert.False(t, hub.IsUserOnline("alice"))

	hub.Route(alice, IncomingEvent{Type: EventUserOnline})

	evt = nextEvent(t, watcher, EventUserStatusChanged)
	assert.Equal(t, true, dataField(t, evt, "isOnline"))
	assert.True(t, hub.IsUserOnline("alice"))

	// both transitions mirrored durably, plus the one from Register
	assert.Len(t, gw.statusUpserts, 3)
}

func TestRouteUnknownEventType(t *testing.T) {
	hub, _ := newTestHub(t)

	alice := newTestClient(hub, "alice")
	hub.Register(alice)

	hub.Route(alice, IncomingEvent{Type: "teleport"})

	evt := nextEvent(t, alice, EventError)
	assert.Contains(t, dataField(t, evt, "message"), "unknown event type")
}
