package delivery_test

import (
	"context"
	"testing"
	"time"

	"lingo/internal/delivery"
	"lingo/internal/domain"
	"lingo/internal/dto"
	"lingo/internal/store"
)

const (
	testWindow = 7 * 24 * time.Hour
	testGrace  = 2 * time.Second
)

func seedMessage(t *testing.T, st *store.Store, roomID domain.RoomID, senderID domain.UserID, content, language string, age time.Duration) *domain.Message {
	t.Helper()
	msg := &domain.Message{
		RoomID:           roomID,
		SenderID:         senderID,
		Content:          content,
		OriginalLanguage: language,
		CreatedAt:        time.Now().UTC().Add(-age),
	}
	if err := st.Messages().Create(context.Background(), msg); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return msg
}

func TestDrainPushesBacklogOnce(t *testing.T) {
	st := openStore(t)
	tr := &stubTranslator{}
	rd := delivery.NewRedelivery(st, tr, testWindow, testGrace, 200)

	asha := seedUser(t, st, "asha", "English")
	ravi := seedUser(t, st, "ravi", "Hindi")
	room, err := st.Rooms().GetOrCreate(context.Background(), asha.ID, ravi.ID)
	if err != nil {
		t.Fatalf("room: %v", err)
	}

	seedMessage(t, st, room.ID, asha.ID, "first", "English", time.Hour)
	seedMessage(t, st, room.ID, asha.ID, "second", "English", 30*time.Minute)

	sess := liveSession(ravi, "conn-ravi")
	n, err := rd.Drain(context.Background(), sess)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 redeliveries, got %d", n)
	}

	conn := sess.Conn.(*stubConn)
	got := conn.deliveries()
	if len(got) != 2 {
		t.Fatalf("expected 2 delivery events, got %d", len(got))
	}
	if got[0].Text != "[Hindi] first" || got[1].Text != "[Hindi] second" {
		t.Fatalf("backlog should arrive oldest first, translated: %+v", got)
	}
	if conn.count(dto.EventPendingNotice) != 1 {
		t.Fatalf("expected exactly one pending notice")
	}

	// A second login on a fresh session finds everything marked.
	again := liveSession(ravi, "conn-ravi-2")
	n, err = rd.Drain(context.Background(), again)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if n != 0 {
		t.Fatalf("second drain must redeliver nothing, got %d", n)
	}
	if again.Conn.(*stubConn).count(dto.EventPendingNotice) != 0 {
		t.Fatalf("no pending notice when nothing was delivered")
	}
}

func TestDrainSkipsMessagesAlreadySeenLive(t *testing.T) {
	st := openStore(t)
	tr := &stubTranslator{}
	rd := delivery.NewRedelivery(st, tr, testWindow, testGrace, 200)

	asha := seedUser(t, st, "asha", "English")
	ravi := seedUser(t, st, "ravi", "English")
	room, _ := st.Rooms().GetOrCreate(context.Background(), asha.ID, ravi.ID)

	msg := seedMessage(t, st, room.ID, asha.ID, "hello", "English", time.Hour)

	// Simulate a live delivery whose MarkDelivered write was lost: the
	// session remembers the message even though the row says otherwise.
	sess := liveSession(ravi, "conn-ravi")
	sess.Dedup.Add(msg)

	n, err := rd.Drain(context.Background(), sess)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 0 {
		t.Fatalf("a message the session already saw must not be re-pushed, got %d", n)
	}
}

func TestDrainContentDedupCatchesRewrittenID(t *testing.T) {
	st := openStore(t)
	rd := delivery.NewRedelivery(st, &stubTranslator{}, testWindow, testGrace, 200)

	asha := seedUser(t, st, "asha", "English")
	ravi := seedUser(t, st, "ravi", "English")
	room, _ := st.Rooms().GetOrCreate(context.Background(), asha.ID, ravi.ID)

	msg := seedMessage(t, st, room.ID, asha.ID, "hello", "English", time.Hour)

	sess := liveSession(ravi, "conn-ravi")
	// Same content, sender and instant under a different id: the
	// composite key still recognizes it.
	clone := *msg
	clone.ID = domain.MessageID{}
	sess.Dedup.Add(&clone)

	n, err := rd.Drain(context.Background(), sess)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 0 {
		t.Fatalf("content-keyed duplicate must not be re-pushed, got %d", n)
	}
}

func TestDrainExpiredStaysReadableInHistory(t *testing.T) {
	st := openStore(t)
	rd := delivery.NewRedelivery(st, &stubTranslator{}, testWindow, testGrace, 200)

	asha := seedUser(t, st, "asha", "English")
	ravi := seedUser(t, st, "ravi", "English")
	room, _ := st.Rooms().GetOrCreate(context.Background(), asha.ID, ravi.ID)

	seedMessage(t, st, room.ID, asha.ID, "ancient", "English", testWindow+time.Hour)

	sess := liveSession(ravi, "conn-ravi")
	n, err := rd.Drain(context.Background(), sess)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 0 {
		t.Fatalf("expired backlog must not be pushed, got %d", n)
	}

	// Expiry only suppresses the push; the room's history still has it.
	msgs, err := st.Messages().ListRoom(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "ancient" {
		t.Fatalf("expired message should remain in history: %+v", msgs)
	}
}

func TestDrainGraceLeavesInFlightAlone(t *testing.T) {
	st := openStore(t)
	rd := delivery.NewRedelivery(st, &stubTranslator{}, testWindow, testGrace, 200)

	asha := seedUser(t, st, "asha", "English")
	ravi := seedUser(t, st, "ravi", "English")
	room, _ := st.Rooms().GetOrCreate(context.Background(), asha.ID, ravi.ID)

	seedMessage(t, st, room.ID, asha.ID, "just sent", "English", 0)
	seedMessage(t, st, room.ID, asha.ID, "older", "English", time.Hour)

	sess := liveSession(ravi, "conn-ravi")
	n, err := rd.Drain(context.Background(), sess)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 1 {
		t.Fatalf("only the message past the grace threshold should be pushed, got %d", n)
	}
	got := sess.Conn.(*stubConn).deliveries()
	if len(got) != 1 || got[0].Text != "older" {
		t.Fatalf("expected only the older message: %+v", got)
	}
}

func TestDrainReusesCachedTranslation(t *testing.T) {
	st := openStore(t)
	tr := &stubTranslator{}
	rd := delivery.NewRedelivery(st, tr, testWindow, testGrace, 200)

	asha := seedUser(t, st, "asha", "English")
	ravi := seedUser(t, st, "ravi", "Hindi")
	room, _ := st.Rooms().GetOrCreate(context.Background(), asha.ID, ravi.ID)

	msg := seedMessage(t, st, room.ID, asha.ID, "hello", "English", time.Hour)
	if err := st.Messages().CacheTranslation(context.Background(), msg.ID, "[Hindi] hello", "English", "Hindi"); err != nil {
		t.Fatalf("cache: %v", err)
	}

	sess := liveSession(ravi, "conn-ravi")
	n, err := rd.Drain(context.Background(), sess)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 redelivery, got %d", n)
	}
	if tr.callCount() != 0 {
		t.Fatalf("cached translation should be reused, translator called %d times", tr.callCount())
	}
	got := sess.Conn.(*stubConn).deliveries()
	if got[0].Text != "[Hindi] hello" || !got[0].IsTranslated {
		t.Fatalf("expected the cached rendering: %+v", got[0])
	}
}

func TestDrainDeadConnectionLeavesBacklogIntact(t *testing.T) {
	st := openStore(t)
	rd := delivery.NewRedelivery(st, &stubTranslator{}, testWindow, testGrace, 200)

	asha := seedUser(t, st, "asha", "English")
	ravi := seedUser(t, st, "ravi", "English")
	room, _ := st.Rooms().GetOrCreate(context.Background(), asha.ID, ravi.ID)

	seedMessage(t, st, room.ID, asha.ID, "hello", "English", time.Hour)

	sess := liveSession(ravi, "conn-ravi")
	sess.Conn.(*stubConn).fail = true

	n, err := rd.Drain(context.Background(), sess)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 0 {
		t.Fatalf("failed pushes must not count as delivered, got %d", n)
	}

	// Next login on a working connection gets it.
	next := liveSession(ravi, "conn-ravi-2")
	n, err = rd.Drain(context.Background(), next)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if n != 1 {
		t.Fatalf("backlog should survive a dead connection, got %d", n)
	}
}
