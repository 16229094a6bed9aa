package domain

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestOrderUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Order
	}{
		{"array", `[2,0,1]`, Order{2, 0, 1}},
		{"object", `{"0":2,"1":0,"2":1}`, Order{2, 0, 1}},
		{"object with gap", `{"0":1,"2":0}`, Order{1, -1, 0}},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Order
			if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	for _, bad := range []string{
		`{"x":1}`,
		`{"-1":0}`,
		`"012"`,
		`{"8":0}`,
		`{"50000000":0}`,
		`{"9223372036854775807":0}`,
		`{"0":1,"99999999999999999999":0}`,
	} {
		var got Order
		if err := json.Unmarshal([]byte(bad), &got); err == nil {
			t.Errorf("%s: expected error, got %v", bad, got)
		}
	}
}

func TestOrderClone(t *testing.T) {
	o := Order{0, 1, 2}
	c := o.Clone()
	c[0] = 9
	if o[0] != 0 {
		t.Fatal("clone aliases original")
	}
	if Order(nil).Clone() != nil {
		t.Fatal("clone of nil should be nil")
	}
}

func TestOptionsResolve(t *testing.T) {
	defaults := Options{TileCount: 6, EmojiTheme: "animals", MaxPlayers: 10, PlacementCount: 3}

	got, err := Options{}.Resolve(defaults)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != defaults {
		t.Errorf("got %+v, want defaults", got)
	}

	got, err = Options{MaxPlayers: 2}.Resolve(defaults)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.PlacementCount != 2 {
		t.Errorf("placement count = %d, want clamped to 2", got.PlacementCount)
	}

	bad := []Options{
		{TileCount: 3},
		{TileCount: 9},
		{MaxPlayers: -1},
		{MaxPlayers: MaxPlayersLimit + 1},
		{PlacementCount: -2},
	}
	for _, o := range bad {
		if _, err := o.Resolve(defaults); KindOf(err) != KindValidation {
			t.Errorf("%+v: expected validation error, got %v", o, err)
		}
	}
}

func ms(v int64) *int64 { return &v }

func TestLeaderboardNormalizes(t *testing.T) {
	sess := &GameSession{Members: []Member{
		{PlayerID: "a", DisplayName: "Alice"},
		{PlayerID: "b", DisplayName: "Bob"},
		{PlayerID: "c", DisplayName: "Cat"},
	}}
	one := 1
	states := []PlayerRoundState{
		// stored ranks collide; they must not leak into the board
		{PlayerID: "b", Finished: true, FinishedAt: ms(150), FinishRank: &one, MoveCount: 4},
		{PlayerID: "a", Finished: true, FinishedAt: ms(100), FinishRank: &one, MoveCount: 7},
		{PlayerID: "c"},
		{PlayerID: "d", Finished: true, FinishedAt: ms(150)},
	}

	board := Leaderboard(sess, states, 0)
	want := []Placement{
		{PlayerID: "a", DisplayName: "Alice", Rank: 1, FinishedAt: 100, MoveCount: 7},
		{PlayerID: "b", DisplayName: "Bob", Rank: 2, FinishedAt: 150, MoveCount: 4},
		{PlayerID: "d", Rank: 3, FinishedAt: 150},
	}
	if !reflect.DeepEqual(board, want) {
		t.Fatalf("got %+v\nwant %+v", board, want)
	}

	if got := Leaderboard(sess, states, 2); len(got) != 2 || got[1].PlayerID != "b" {
		t.Errorf("limit 2: got %+v", got)
	}
	if got := Leaderboard(sess, nil, 0); len(got) != 0 {
		t.Errorf("empty states: got %+v", got)
	}
}

func TestRosterHelpers(t *testing.T) {
	s := &GameSession{Members: []Member{{PlayerID: "h"}, {PlayerID: "a"}, {PlayerID: "b"}}}

	s.MarkDeparted("a")
	if m, _ := s.Member("a"); !m.Departed {
		t.Error("a should be departed")
	}
	if n := len(s.ActiveMembers()); n != 2 {
		t.Errorf("active = %d, want 2", n)
	}
	if !s.RemoveMember("b") || s.RemoveMember("b") {
		t.Error("RemoveMember should report presence once")
	}
	if _, ok := s.Member("b"); ok {
		t.Error("b still on roster")
	}
}

func TestBuildResults(t *testing.T) {
	ended := time.UnixMilli(500).UTC()
	sess := &GameSession{
		ID:        "g1",
		Name:      "race",
		Options:   Options{TileCount: 4},
		Members:   []Member{{PlayerID: "h", DisplayName: "Host"}, {PlayerID: "a"}, {PlayerID: "b"}},
		EndReason: EndHostLeft,
		EndedAt:   &ended,
	}
	states := []PlayerRoundState{
		{PlayerID: "h", MoveCount: 2},
		{PlayerID: "a", Finished: true, FinishedAt: ms(100), MoveCount: 3},
		{PlayerID: "b", MoveCount: 1},
	}
	board := Leaderboard(sess, states, 3)

	got := map[string]*GameResult{}
	for _, r := range BuildResults(sess, states, board) {
		got[r.PlayerID] = r
	}
	if got["a"].Status != ResultFinished || got["a"].Placement == nil || *got["a"].Placement != 1 {
		t.Errorf("a: %+v", got["a"])
	}
	if got["b"].Status != ResultAbandoned || got["b"].Placement != nil {
		t.Errorf("b: %+v", got["b"])
	}
	if got["h"].DisplayName != "Host" || !got["h"].EndedAt.Equal(ended) {
		t.Errorf("h: %+v", got["h"])
	}

	sess.EndReason = EndCompleted
	for _, r := range BuildResults(sess, states, board) {
		if r.PlayerID == "b" && r.Status != ResultDNF {
			t.Errorf("completed game: b status = %s, want dnf", r.Status)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	if KindOf(ErrGameFull) != KindPhase {
		t.Error("game full is a phase error")
	}
	wrapped := StoreError("write session", errors.New("boom"))
	if KindOf(wrapped) != KindStore || wrapped.Error() != "write session: boom" {
		t.Errorf("store error: %v", wrapped)
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Error("plain errors carry no kind")
	}
}
