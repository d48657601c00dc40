package message

import (
	"reflect"
	"testing"
	"time"
)

func ts(sec int64) *time.Time {
	t := time.Unix(sec, 0)
	return &t
}

func TestSortByTimestampResortsArrivalOrder(t *testing.T) {
	msgs := []Message{
		{ID: "m3", Timestamp: ts(3)},
		{ID: "m1", Timestamp: ts(1)},
		{ID: "m2", Timestamp: ts(2)},
	}
	SortByTimestamp(msgs)
	got := []string{msgs[0].ID, msgs[1].ID, msgs[2].ID}
	if !reflect.DeepEqual(got, []string{"m1", "m2", "m3"}) {
		t.Fatalf("got %v", got)
	}
}

func TestSortByTimestampTiesAndPending(t *testing.T) {
	msgs := []Message{
		{ID: "pending"},
		{ID: "b", Timestamp: ts(5)},
		{ID: "a", Timestamp: ts(5)},
		{ID: "first", Timestamp: ts(1)},
	}
	SortByTimestamp(msgs)
	want := []string{"first", "b", "a", "pending"}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Fatalf("position %d: got %s want %s", i, msgs[i].ID, id)
		}
	}
}

func TestApplyEditIsIdempotent(t *testing.T) {
	msgs := []Message{{ID: "m1", SenderID: "u1", Content: "helo", Timestamp: ts(1)}}
	edit := Edit{MessageID: "m1", Content: "hello", EditedAt: time.Unix(10, 0)}

	if !ApplyEdit(msgs, edit) {
		t.Fatalf("expected first edit to apply")
	}
	once := append([]Message(nil), msgs...)
	ApplyEdit(msgs, edit)
	if !reflect.DeepEqual(once, msgs) {
		t.Fatalf("second application changed state: %+v vs %+v", once, msgs)
	}
	if !msgs[0].Edited || msgs[0].Content != "hello" {
		t.Fatalf("edit not applied: %+v", msgs[0])
	}
}

func TestApplyEditIgnoresOlderEdit(t *testing.T) {
	msgs := []Message{{ID: "m1", Content: "v2", Edited: true, EditedAt: ts(20)}}
	if ApplyEdit(msgs, Edit{MessageID: "m1", Content: "v1", EditedAt: time.Unix(10, 0)}) {
		t.Fatalf("older edit should not apply")
	}
	if msgs[0].Content != "v2" {
		t.Fatalf("content regressed to %q", msgs[0].Content)
	}
}

func TestPreview(t *testing.T) {
	cases := []struct {
		content, image, gif, want string
	}{
		{"  hi  ", "", "", "hi"},
		{"", "https://img", "", ImagePlaceholder},
		{"", "", "https://gif", GifPlaceholder},
		{"caption", "https://img", "", "caption"},
		{"", "", "", ""},
	}
	for _, tc := range cases {
		if got := Preview(tc.content, tc.image, tc.gif); got != tc.want {
			t.Fatalf("Preview(%q,%q,%q) = %q, want %q", tc.content, tc.image, tc.gif, got, tc.want)
		}
	}
}
