package models

import (
	"testing"
	"time"
)

func inviteAt(created time.Time) NotificationView {
	n := Notification{ID: "n-" + created.Format("20060102"), CreatedAt: created}
	return NotificationView{Notification: n}
}

func TestGroupNotificationsBuckets(t *testing.T) {
	t.Parallel()

	// Wednesday, so earlier weekdays fall in the same Sunday-started week
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	views := []NotificationView{
		inviteAt(now.Add(-2 * time.Hour)),                            // Today
		inviteAt(time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC)),       // Monday same week
		inviteAt(time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC)),        // earlier in May
		inviteAt(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)),        // February
		inviteAt(time.Date(2023, 12, 24, 9, 0, 0, 0, time.UTC)),      // last year
	}

	groups := GroupNotifications(views, now)
	if len(groups) != 4 {
		t.Fatalf("expected 4 groups, got %d", len(groups))
	}

	wantLabels := []string{GroupToday, GroupThisWeek, GroupThisMonth, GroupOlder}
	wantCounts := []int{1, 1, 1, 2}
	for i, g := range groups {
		if g.Label != wantLabels[i] {
			t.Errorf("group %d label = %q, want %q", i, g.Label, wantLabels[i])
		}
		if len(g.Notifications) != wantCounts[i] {
			t.Errorf("group %q has %d notifications, want %d", g.Label, len(g.Notifications), wantCounts[i])
		}
	}
}

func TestGroupNotificationsOmitsEmptyBuckets(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	groups := GroupNotifications([]NotificationView{inviteAt(now.Add(-time.Hour))}, now)

	if len(groups) != 1 || groups[0].Label != GroupToday {
		t.Fatalf("expected only a Today group, got %+v", groups)
	}
}

func TestGroupNotificationsWeekStartsSunday(t *testing.T) {
	t.Parallel()

	// Sunday noon: the previous Saturday is last week even though it is
	// less than 7 days away
	now := time.Date(2024, 5, 12, 12, 0, 0, 0, time.UTC)
	saturday := time.Date(2024, 5, 11, 12, 0, 0, 0, time.UTC)

	groups := GroupNotifications([]NotificationView{inviteAt(saturday)}, now)
	if len(groups) != 1 || groups[0].Label != GroupThisMonth {
		t.Fatalf("Saturday before a Sunday must land in This Month, got %+v", groups)
	}
}

func TestInvitePayloadRoundTrip(t *testing.T) {
	t.Parallel()

	var n Notification
	if err := n.SetInvitePayload(InvitePayload{OrganizationID: "org-1"}); err != nil {
		t.Fatalf("SetInvitePayload failed: %v", err)
	}
	if n.Type != NotificationInvite {
		t.Fatalf("expected invite type, got %s", n.Type)
	}

	p, err := n.InvitePayload()
	if err != nil {
		t.Fatalf("InvitePayload failed: %v", err)
	}
	if p.OrganizationID != "org-1" || p.Accepted {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestInvitePayloadRejectsOtherTypes(t *testing.T) {
	t.Parallel()

	n := Notification{Type: NotificationMessage, Data: []byte(`{}`)}
	if _, err := n.InvitePayload(); err == nil {
		t.Fatal("expected error for non-invite notification")
	}
}
