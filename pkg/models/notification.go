package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type NotificationType string

const (
	NotificationMessage  NotificationType = "message"
	NotificationCalendar NotificationType = "calendar"
	NotificationUser     NotificationType = "user"
	NotificationDefault  NotificationType = "default"
	NotificationInvite   NotificationType = "invite"
)

// Notification is an in-app message addressed by email. Invitations to join
// an organization are notifications of type "invite"; the recipient may not
// exist as a user yet, so addressing is by email rather than userId.
type Notification struct {
	ID            string           `json:"id" db:"id"`
	Type          NotificationType `json:"type" db:"type"`
	FromUserEmail string           `json:"from_user_email" db:"from_user_email"`
	ToUserEmail   string           `json:"to_user_email" db:"to_user_email"`
	IsRead        bool             `json:"is_read" db:"is_read"`
	Data          json.RawMessage  `json:"data" db:"data"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// InvitePayload is the data variant carried by "invite" notifications
type InvitePayload struct {
	OrganizationID string `json:"organizationId"`
	Accepted       bool   `json:"accepted"`
}

// InvitePayload decodes the data field of an invite notification.
func (n *Notification) InvitePayload() (*InvitePayload, error) {
	if n.Type != NotificationInvite {
		return nil, fmt.Errorf("notification %s is not an invite (type=%s)", n.ID, n.Type)
	}
	var p InvitePayload
	if err := json.Unmarshal(n.Data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode invite payload: %w", err)
	}
	return &p, nil
}

// SetInvitePayload encodes p into the data field and marks the type.
func (n *Notification) SetInvitePayload(p InvitePayload) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode invite payload: %w", err)
	}
	n.Type = NotificationInvite
	n.Data = raw
	return nil
}

// AcceptInvitationRequest identifies the invite being accepted
type AcceptInvitationRequest struct {
	NotificationID string `json:"notification_id" validate:"required"`
	OrganizationID string `json:"organization_id,omitempty"`
	InvitedBy      string `json:"invited_by,omitempty"`
}

// NotificationView joins a notification with sender info and, for invites,
// the organization summary the invite points at.
type NotificationView struct {
	Notification
	FromUser     *UserSummary         `json:"from_user,omitempty"`
	Organization *OrganizationSummary `json:"organization,omitempty"`
}

// NotificationGroup is a display bucket of notifications
type NotificationGroup struct {
	Label         string             `json:"label"`
	Notifications []NotificationView `json:"notifications"`
}

// Bucket labels, newest first
const (
	GroupToday     = "Today"
	GroupThisWeek  = "This Week"
	GroupThisMonth = "This Month"
	GroupOlder     = "Older"
)

// GroupNotifications buckets notifications by creation time relative to now:
// same calendar day, same week (weeks start on Sunday), same calendar month,
// else older. Empty buckets are omitted; bucket order is fixed.
func GroupNotifications(notifications []NotificationView, now time.Time) []NotificationGroup {
	buckets := map[string][]NotificationView{}
	for _, n := range notifications {
		label := bucketLabel(n.CreatedAt, now)
		buckets[label] = append(buckets[label], n)
	}

	var groups []NotificationGroup
	for _, label := range []string{GroupToday, GroupThisWeek, GroupThisMonth, GroupOlder} {
		if items, ok := buckets[label]; ok {
			groups = append(groups, NotificationGroup{Label: label, Notifications: items})
		}
	}
	return groups
}

func bucketLabel(ts, now time.Time) string {
	ts = ts.In(now.Location())
	if sameDay(ts, now) {
		return GroupToday
	}
	if startOfWeek(ts).Equal(startOfWeek(now)) {
		return GroupThisWeek
	}
	if ts.Year() == now.Year() && ts.Month() == now.Month() {
		return GroupThisMonth
	}
	return GroupOlder
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// startOfWeek truncates t to midnight of its week's Sunday.
func startOfWeek(t time.Time) time.Time {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}
