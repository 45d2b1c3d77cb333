package database

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"orghub-backend/pkg/models"

	"github.com/google/uuid"
)

// MemoryDatabase is an in-memory implementation of DatabaseInterface used by
// tests and as a development fallback. Semantics mirror the PostgreSQL
// implementation, including the uniqueness arbitration.
type MemoryDatabase struct {
	mu            sync.RWMutex
	users         map[string]models.User
	organizations map[string]models.Organization
	memberships   map[string]models.Membership
	notifications map[string]models.Notification
}

// NewMemoryDatabase creates an empty in-memory database.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		users:         map[string]models.User{},
		organizations: map[string]models.Organization{},
		memberships:   map[string]models.Membership{},
		notifications: map[string]models.Notification{},
	}
}

// ==== Users ====

func (db *MemoryDatabase) CreateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	user.Email = normalizeEmail(user.Email)
	for _, u := range db.users {
		if u.Email == user.Email {
			return ErrConflict
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	db.users[user.ID] = *user
	return nil
}

func (db *MemoryDatabase) GetUserByEmail(email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	email = normalizeEmail(email)
	for _, u := range db.users {
		if u.Email == email {
			c := u
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (db *MemoryDatabase) GetUserByID(id string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	u, ok := db.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := u
	return &c, nil
}

func (db *MemoryDatabase) UpdateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.users[user.ID]; !ok {
		return ErrNotFound
	}
	user.Email = normalizeEmail(user.Email)
	for id, u := range db.users {
		if id != user.ID && u.Email == user.Email {
			return ErrConflict
		}
	}
	user.UpdatedAt = time.Now()
	db.users[user.ID] = *user
	return nil
}

func (db *MemoryDatabase) DeleteUser(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.users[id]; !ok {
		return ErrNotFound
	}
	delete(db.users, id)
	return nil
}

func (db *MemoryDatabase) ListUsers(page, perPage int, search string) ([]models.User, int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var all []models.User
	needle := strings.ToLower(search)
	for _, u := range db.users {
		if search == "" ||
			strings.Contains(strings.ToLower(u.Name), needle) ||
			strings.Contains(u.Email, needle) {
			all = append(all, u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, page, perPage)
}

// ==== Organizations ====

func (db *MemoryDatabase) CreateOrganization(org *models.Organization) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, o := range db.organizations {
		if strings.EqualFold(o.Name, org.Name) || o.Slug == org.Slug {
			return ErrConflict
		}
	}

	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	org.CreatedAt = time.Now()
	org.UpdatedAt = org.CreatedAt
	db.organizations[org.ID] = *org
	return nil
}

func (db *MemoryDatabase) GetOrganizationByID(id string) (*models.Organization, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	o, ok := db.organizations[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := o
	return &c, nil
}

func (db *MemoryDatabase) GetOrganizationBySlug(slug string) (*models.Organization, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, o := range db.organizations {
		if o.Slug == slug {
			c := o
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (db *MemoryDatabase) UpdateOrganization(org *models.Organization) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.organizations[org.ID]; !ok {
		return ErrNotFound
	}
	for id, o := range db.organizations {
		if id != org.ID && (strings.EqualFold(o.Name, org.Name) || o.Slug == org.Slug) {
			return ErrConflict
		}
	}
	org.UpdatedAt = time.Now()
	db.organizations[org.ID] = *org
	return nil
}

func (db *MemoryDatabase) DeleteOrganization(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.organizations[id]; !ok {
		return ErrNotFound
	}
	delete(db.organizations, id)
	// Cascade to memberships
	for mid, m := range db.memberships {
		if m.OrganizationID == id {
			delete(db.memberships, mid)
		}
	}
	return nil
}

func (db *MemoryDatabase) ListOrganizations(page, perPage int, search string) ([]models.Organization, int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var all []models.Organization
	needle := strings.ToLower(search)
	for _, o := range db.organizations {
		if search == "" ||
			strings.Contains(strings.ToLower(o.Name), needle) ||
			strings.Contains(strings.ToLower(o.Description), needle) {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, page, perPage)
}

func (db *MemoryDatabase) ListUserOrganizations(userID string) ([]models.Organization, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var orgs []models.Organization
	for _, m := range db.memberships {
		if m.UserID == userID {
			if o, ok := db.organizations[m.OrganizationID]; ok {
				orgs = append(orgs, o)
			}
		}
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].CreatedAt.After(orgs[j].CreatedAt) })
	return orgs, nil
}

// ==== Memberships ====

func (db *MemoryDatabase) CreateMembership(m *models.Membership) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.users[m.UserID]; !ok {
		return ErrNotFound
	}
	if _, ok := db.organizations[m.OrganizationID]; !ok {
		return ErrNotFound
	}
	for _, existing := range db.memberships {
		if existing.UserID == m.UserID && existing.OrganizationID == m.OrganizationID {
			return ErrConflict
		}
	}

	if m.Role == "" {
		m.Role = models.RoleMember
	}
	if m.Status == "" {
		m.Status = models.StatusPending
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.InvitedAt.IsZero() {
		m.InvitedAt = time.Now()
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	db.memberships[m.ID] = *m
	return nil
}

func (db *MemoryDatabase) GetMembership(id string) (*models.Membership, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	m, ok := db.memberships[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := m
	return &c, nil
}

func (db *MemoryDatabase) FindMembership(userID, organizationID string) (*models.Membership, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, m := range db.memberships {
		if m.UserID == userID && m.OrganizationID == organizationID {
			c := m
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (db *MemoryDatabase) ListMembershipsByOrganization(organizationID string) ([]models.Membership, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var memberships []models.Membership
	for _, m := range db.memberships {
		if m.OrganizationID == organizationID {
			memberships = append(memberships, m)
		}
	}
	sort.Slice(memberships, func(i, j int) bool {
		return memberships[i].CreatedAt.Before(memberships[j].CreatedAt)
	})
	return memberships, nil
}

func (db *MemoryDatabase) ListOrganizationMembers(organizationID string) ([]models.Member, error) {
	memberships, err := db.ListMembershipsByOrganization(organizationID)
	if err != nil {
		return nil, err
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	var members []models.Member
	for _, m := range memberships {
		member := models.Member{Membership: m}
		if u, ok := db.users[m.UserID]; ok {
			member.User = u.Summary()
		}
		members = append(members, member)
	}
	return members, nil
}

func (db *MemoryDatabase) UpdateMembership(m *models.Membership) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.memberships[m.ID]; !ok {
		return ErrNotFound
	}
	m.UpdatedAt = time.Now()
	db.memberships[m.ID] = *m
	return nil
}

func (db *MemoryDatabase) DeleteMembership(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.memberships[id]; !ok {
		return ErrNotFound
	}
	delete(db.memberships, id)
	return nil
}

// ==== Notifications ====

func (db *MemoryDatabase) CreateNotification(n *models.Notification) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.FromUserEmail = normalizeEmail(n.FromUserEmail)
	n.ToUserEmail = normalizeEmail(n.ToUserEmail)
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	db.notifications[n.ID] = *n
	return nil
}

func (db *MemoryDatabase) GetNotificationByID(id string) (*models.Notification, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	n, ok := db.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := n
	return &c, nil
}

func (db *MemoryDatabase) ListNotificationsByEmail(email string) ([]models.Notification, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	email = normalizeEmail(email)
	var notifications []models.Notification
	for _, n := range db.notifications {
		if n.ToUserEmail == email {
			notifications = append(notifications, n)
		}
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications, nil
}

func (db *MemoryDatabase) MarkNotificationRead(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	n, ok := db.notifications[id]
	if !ok {
		return ErrNotFound
	}
	n.IsRead = true
	n.UpdatedAt = time.Now()
	db.notifications[id] = n
	return nil
}

func (db *MemoryDatabase) MarkAllNotificationsRead(email string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	email = normalizeEmail(email)
	for id, n := range db.notifications {
		if n.ToUserEmail == email && !n.IsRead {
			n.IsRead = true
			n.UpdatedAt = time.Now()
			db.notifications[id] = n
		}
	}
	return nil
}

func (db *MemoryDatabase) SetInviteAccepted(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	n, ok := db.notifications[id]
	if !ok || n.Type != models.NotificationInvite {
		return ErrNotFound
	}

	var p models.InvitePayload
	if err := json.Unmarshal(n.Data, &p); err != nil {
		return err
	}
	p.Accepted = true
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	n.Data = raw
	n.UpdatedAt = time.Now()
	db.notifications[id] = n
	return nil
}

func (db *MemoryDatabase) HealthCheck() error { return nil }

func (db *MemoryDatabase) Close() error { return nil }

func paginate[T any](all []T, page, perPage int) ([]T, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	total := len(all)
	start := (page - 1) * perPage
	if start >= total {
		return nil, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}
