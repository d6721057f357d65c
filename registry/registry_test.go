package registry

import (
	"errors"
	"testing"

	"github.com/collabboard/collabboard/protocol"
)

func TestJoinEmptyRoomIDAllocatesDistinctRooms(t *testing.T) {
	r := New()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		s := r.CreateSession("")
		info, err := r.JoinRoom(s.Handle, "", "", "")
		if err != nil {
			t.Fatalf("join: %v", err)
		}
		if len(info.RoomID) != 8 {
			t.Fatalf("room id %q, want 8 characters", info.RoomID)
		}
		if seen[info.RoomID] {
			t.Fatalf("room id %q allocated twice", info.RoomID)
		}
		seen[info.RoomID] = true

		members := r.Members(info.RoomID)
		if len(members) != 1 || members[0].UserID != s.UserID {
			t.Fatalf("joiner should be the sole member, got %+v", members)
		}
	}
}

func TestJoinUnknownRoomFails(t *testing.T) {
	r := New()
	s := r.CreateSession("")

	_, err := r.JoinRoom(s.Handle, "nope1234", "", "")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestJoinExistingRoom(t *testing.T) {
	r := New()
	a := r.CreateSession("ana")
	b := r.CreateSession("bob")

	info, err := r.JoinRoom(a.Handle, "", "Test Room", "")
	if err != nil {
		t.Fatalf("join a: %v", err)
	}

	got, err := r.JoinRoom(b.Handle, info.RoomID, "", "")
	if err != nil {
		t.Fatalf("join b: %v", err)
	}
	if got.RoomID != info.RoomID {
		t.Fatalf("room = %q, want %q", got.RoomID, info.RoomID)
	}
	if len(r.Members(info.RoomID)) != 2 {
		t.Fatalf("want 2 members")
	}
}

func TestRejoinReturnsFreshSnapshot(t *testing.T) {
	r := New()
	a := r.CreateSession("")
	info, _ := r.JoinRoom(a.Handle, "", "", "")

	if _, err := r.AppendOperation(info.RoomID, a.UserID, lineOp()); err != nil {
		t.Fatalf("append: %v", err)
	}

	again, err := r.JoinRoom(a.Handle, info.RoomID, "", "")
	if err != nil {
		t.Fatalf("re-join: %v", err)
	}
	if len(again.Snapshot) != 1 {
		t.Fatalf("snapshot length = %d, want 1", len(again.Snapshot))
	}
	if len(r.Members(info.RoomID)) != 1 {
		t.Fatalf("re-join must not duplicate membership")
	}
}

func TestCreateRoomJoinsCreator(t *testing.T) {
	r := New()
	s := r.CreateSession("ana")

	info, err := r.CreateRoom(s.Handle, "myroom12", "Planning", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if info.RoomID != "myroom12" {
		t.Fatalf("room id = %q, want requested id honored", info.RoomID)
	}
	if info.RoomName != "Planning" {
		t.Fatalf("room name = %q", info.RoomName)
	}

	members := r.Members(info.RoomID)
	if len(members) != 1 || members[0].UserID != s.UserID {
		t.Fatalf("creator not a member: %+v", members)
	}
}

func TestCreateRoomTakenIDGetsFreshOne(t *testing.T) {
	r := New()
	a := r.CreateSession("")
	b := r.CreateSession("")

	first, _ := r.CreateRoom(a.Handle, "sameid12", "", "")
	second, err := r.CreateRoom(b.Handle, "sameid12", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if second.RoomID == first.RoomID {
		t.Fatalf("taken room id reused")
	}
}

func TestLeaveLastMemberDestroysRoom(t *testing.T) {
	r := New()
	a := r.CreateSession("")
	b := r.CreateSession("")

	info, _ := r.JoinRoom(a.Handle, "", "", "")
	if _, err := r.JoinRoom(b.Handle, info.RoomID, "", ""); err != nil {
		t.Fatalf("join b: %v", err)
	}

	if roomID, ok := r.LeaveRoom(a.Handle); !ok || roomID != info.RoomID {
		t.Fatalf("leave a: ok=%v room=%q", ok, roomID)
	}
	if !r.RoomExists(info.RoomID) {
		t.Fatalf("room must survive while b remains")
	}

	r.LeaveRoom(b.Handle)
	if r.RoomExists(info.RoomID) {
		t.Fatalf("room must be destroyed when empty")
	}
}

func TestDestroySessionIsIdempotent(t *testing.T) {
	r := New()
	s := r.CreateSession("")
	info, _ := r.JoinRoom(s.Handle, "", "", "")

	_, roomID, ok := r.DestroySession(s.Handle)
	if !ok || roomID != info.RoomID {
		t.Fatalf("destroy: ok=%v room=%q", ok, roomID)
	}
	if _, _, ok := r.DestroySession(s.Handle); ok {
		t.Fatalf("second destroy must be a no-op")
	}
	if r.RoomExists(info.RoomID) {
		t.Fatalf("room of sole member must be gone")
	}
}

func TestSetRole(t *testing.T) {
	r := New()
	s := r.CreateSession("")

	if s.Role != protocol.RoleEditor {
		t.Fatalf("default role = %v, want editor", s.Role)
	}
	if !r.SetRole(s.UserID, protocol.RolePresenter) {
		t.Fatalf("set role failed")
	}
	got, _ := r.Session(s.Handle)
	if got.Role != protocol.RolePresenter {
		t.Fatalf("role = %v", got.Role)
	}
	if r.SetRole("missing", protocol.RoleViewer) {
		t.Fatalf("set role on unknown user must fail")
	}
}

func TestMembershipIsolation(t *testing.T) {
	r := New()
	a := r.CreateSession("")
	b := r.CreateSession("")

	r1, _ := r.JoinRoom(a.Handle, "", "", "")
	r2, _ := r.JoinRoom(b.Handle, "", "", "")

	if _, err := r.AppendOperation(r1.RoomID, a.UserID, lineOp()); err != nil {
		t.Fatalf("append: %v", err)
	}

	snap, err := r.Snapshot(r2.RoomID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap) != 0 {
		t.Fatalf("operation leaked across rooms")
	}
	for _, m := range r.Members(r1.RoomID) {
		if m.UserID == b.UserID {
			t.Fatalf("membership leaked across rooms")
		}
	}
}

func lineOp() protocol.DrawingOperation {
	return protocol.DrawingOperation{
		OpType: protocol.OpDrawLine,
		Data: map[string]any{
			"x1": 0.0, "y1": 0.0, "x2": 10.0, "y2": 10.0,
			"penColor": "#000000", "penWidth": 2,
		},
	}
}
