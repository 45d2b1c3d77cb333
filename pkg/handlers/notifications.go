package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"orghub-backend/pkg/config"
	"orghub-backend/pkg/database"
	"orghub-backend/pkg/middleware"
	"orghub-backend/pkg/models"
	"orghub-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// NotificationsHandler serves the notification feed and invitation acceptance.
type NotificationsHandler struct {
	config   *config.Config
	db       database.DatabaseInterface
	sessions *utils.SessionService
}

// NewNotificationsHandler creates the notifications handler.
func NewNotificationsHandler(cfg *config.Config, db database.DatabaseInterface, sessions *utils.SessionService) *NotificationsHandler {
	return &NotificationsHandler{config: cfg, db: db, sessions: sessions}
}

// ListNotifications returns the session user's notifications enriched with
// sender and organization summaries, grouped by age.
// GET /api/notifications
func (h *NotificationsHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	notifications, err := h.db.ListNotificationsByEmail(user.Email)
	if err != nil {
		fmt.Printf("[error] list notifications for %s failed: %v\n", user.Email, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to load notifications")
		return
	}

	views := make([]models.NotificationView, 0, len(notifications))
	unread := 0
	for i := range notifications {
		n := notifications[i]
		if !n.IsRead {
			unread++
		}
		views = append(views, h.buildView(n))
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"groups":       models.GroupNotifications(views, time.Now()),
		"total":        len(views),
		"unread_count": unread,
	})
}

// buildView joins sender and, for invites, organization summaries onto a
// notification. Missing references degrade to a bare notification rather
// than failing the whole feed.
func (h *NotificationsHandler) buildView(n models.Notification) models.NotificationView {
	view := models.NotificationView{Notification: n}

	if n.FromUserEmail != "" {
		if sender, err := h.db.GetUserByEmail(n.FromUserEmail); err == nil {
			summary := sender.Summary()
			view.FromUser = &summary
		}
	}

	if n.Type == models.NotificationInvite {
		payload, err := n.InvitePayload()
		if err != nil {
			fmt.Printf("[warn] undecodable invite payload on %s: %v\n", n.ID, err)
			return view
		}
		if org, err := h.db.GetOrganizationByID(payload.OrganizationID); err == nil {
			summary := org.Summary()
			view.Organization = &summary
		}
	}
	return view
}

// MarkRead marks a single notification as read. Only the addressee may do so.
// POST /api/notifications/{id}/read
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	n, err := h.db.GetNotificationByID(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Notification not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load notification")
		return
	}
	if n.ToUserEmail != user.Email {
		utils.WriteForbiddenResponse(w, "Notification belongs to another user")
		return
	}

	if err := h.db.MarkNotificationRead(id); err != nil {
		fmt.Printf("[error] mark notification %s read failed: %v\n", id, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to update notification")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"id": id, "is_read": true})
}

// MarkAllRead marks every notification addressed to the session user as read.
// POST /api/notifications/read-all
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if err := h.db.MarkAllNotificationsRead(user.Email); err != nil {
		fmt.Printf("[error] mark all read for %s failed: %v\n", user.Email, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to update notifications")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"marked_all": true})
}

// AcceptInvitation converts an invite notification into an active membership.
// Accepting twice is harmless: the payload flip is idempotent and an existing
// membership short-circuits creation.
// POST /api/invitations/accept
func (h *NotificationsHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req models.AcceptInvitationRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.NotificationID == "" {
		utils.WriteBadRequestResponse(w, "notification_id is required")
		return
	}

	n, err := h.db.GetNotificationByID(req.NotificationID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Invitation not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load invitation")
		return
	}
	if n.Type != models.NotificationInvite {
		utils.WriteBadRequestResponse(w, "Notification is not an invitation")
		return
	}
	if n.ToUserEmail != user.Email {
		utils.WriteForbiddenResponse(w, "Invitation belongs to another user")
		return
	}

	payload, err := n.InvitePayload()
	if err != nil {
		fmt.Printf("[error] invite payload on %s: %v\n", n.ID, err)
		utils.WriteInternalServerErrorResponse(w, "Invitation is malformed")
		return
	}
	orgID := payload.OrganizationID
	if orgID == "" {
		orgID = req.OrganizationID
	}
	if orgID == "" {
		utils.WriteBadRequestResponse(w, "Invitation has no organization")
		return
	}

	if _, err := h.db.GetOrganizationByID(orgID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Organization no longer exists")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load organization")
		return
	}

	if err := h.db.SetInviteAccepted(n.ID); err != nil {
		fmt.Printf("[error] flag invite %s accepted failed: %v\n", n.ID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to accept invitation")
		return
	}

	membership, err := h.ensureMembership(user.ID, orgID, req.InvitedBy, n.FromUserEmail)
	if err != nil {
		fmt.Printf("[error] membership for invite %s failed: %v\n", n.ID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to join organization")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"result":     "Success",
		"membership": membership,
	})
}

// ensureMembership returns the existing membership for the pair or creates a
// member/active one. A concurrent create losing to the unique index is
// treated as already joined.
func (h *NotificationsHandler) ensureMembership(userID, orgID, invitedBy, fromEmail string) (*models.Membership, error) {
	if existing, err := h.db.FindMembership(userID, orgID); err == nil {
		return existing, nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	inviter := invitedBy
	if inviter == "" && fromEmail != "" {
		if sender, err := h.db.GetUserByEmail(fromEmail); err == nil {
			inviter = sender.ID
		}
	}

	m := &models.Membership{
		UserID:         userID,
		OrganizationID: orgID,
		Role:           models.RoleMember,
		Status:         models.StatusActive,
	}
	if inviter != "" {
		m.InvitedBy = &inviter
		m.InvitedAt = time.Now()
	}

	if err := h.db.CreateMembership(m); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return h.db.FindMembership(userID, orgID)
		}
		return nil, err
	}
	return m, nil
}

func (h *NotificationsHandler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	userID, err := middleware.RequireUserID(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return nil, false
	}
	user, err := h.db.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.sessions.ClearCookie(w)
			utils.WriteUnauthorizedResponse(w, "Authentication required")
			return nil, false
		}
		fmt.Printf("[error] failed to load user %s: %v\n", userID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to load user")
		return nil, false
	}
	return user, true
}
