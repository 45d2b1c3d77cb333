package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"orghub-backend/pkg/models"

	"github.com/lib/pq"
)

// PostgresDatabase is the PostgreSQL implementation of DatabaseInterface
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase opens a pooled connection. Timeouts bound how long a
// stalled call may block a request before failing.
func NewPostgresDatabase(dsn string) (DatabaseInterface, error) {
	dsn = strings.TrimSpace(dsn)
	dsn = addConnectionParams(dsn, "connect_timeout=10")

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDatabase{db: db}, nil
}

func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + params
}

// translateError maps constraint violations onto the sentinel taxonomy.
// The unique index is the final arbiter for Conflict under concurrency.
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return ErrConflict
		case "23503": // foreign_key_violation
			return ErrNotFound
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// normalizeEmail lowercases email at the storage boundary so A@x.com and
// a@x.com are the same account.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ==== Users ====

func (db *PostgresDatabase) CreateUser(user *models.User) error {
	user.Email = normalizeEmail(user.Email)
	query := `
		INSERT INTO users (email, password_hash, name, avatar, is_email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, user.Email, user.Password, user.Name, user.Avatar, user.IsEmailVerified).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if te := translateError(err); te == ErrConflict {
			return ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetUserByEmail(email string) (*models.User, error) {
	query := `
		SELECT id, email, COALESCE(password_hash,''), COALESCE(name,''), COALESCE(avatar,''),
		       is_email_verified, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var u models.User
	err := db.db.QueryRow(query, normalizeEmail(email)).Scan(
		&u.ID, &u.Email, &u.Password, &u.Name, &u.Avatar, &u.IsEmailVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

func (db *PostgresDatabase) GetUserByID(id string) (*models.User, error) {
	query := `
		SELECT id, email, COALESCE(password_hash,''), COALESCE(name,''), COALESCE(avatar,''),
		       is_email_verified, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u models.User
	err := db.db.QueryRow(query, id).Scan(
		&u.ID, &u.Email, &u.Password, &u.Name, &u.Avatar, &u.IsEmailVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (db *PostgresDatabase) UpdateUser(user *models.User) error {
	if user.ID == "" {
		return fmt.Errorf("user ID is required for update")
	}
	user.Email = normalizeEmail(user.Email)
	query := `
		UPDATE users
		SET email = $1,
		    password_hash = $2,
		    name = $3,
		    avatar = $4,
		    is_email_verified = $5,
		    updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`
	err := db.db.QueryRow(query, user.Email, user.Password, user.Name, user.Avatar,
		user.IsEmailVerified, user.ID).Scan(&user.UpdatedAt)
	if err != nil {
		if te := translateError(err); te == ErrConflict || te == ErrNotFound {
			return te
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteUser(id string) error {
	result, err := db.db.Exec(`DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDatabase) ListUsers(page, perPage int, search string) ([]models.User, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	where := ""
	args := []interface{}{}
	if search != "" {
		where = `WHERE name ILIKE $1 OR email ILIKE $1`
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := db.db.QueryRow(`SELECT COUNT(*) FROM users `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`
		SELECT id, email, COALESCE(name,''), COALESCE(avatar,''), is_email_verified, created_at, updated_at
		FROM users %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Avatar, &u.IsEmailVerified, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// ==== Organizations ====

func (db *PostgresDatabase) CreateOrganization(org *models.Organization) error {
	query := `
		INSERT INTO organizations (name, slug, description, logo, website, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, org.Name, org.Slug, org.Description, org.Logo, org.Website).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if te := translateError(err); te == ErrConflict {
			return ErrConflict
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

const orgColumns = `id, name, slug, COALESCE(description,''), COALESCE(logo,''), COALESCE(website,''), created_at, updated_at`

func scanOrganization(row *sql.Row) (*models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Description, &o.Logo, &o.Website, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &o, nil
}

func (db *PostgresDatabase) GetOrganizationByID(id string) (*models.Organization, error) {
	return scanOrganization(db.db.QueryRow(`SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
}

func (db *PostgresDatabase) GetOrganizationBySlug(slug string) (*models.Organization, error) {
	return scanOrganization(db.db.QueryRow(`SELECT `+orgColumns+` FROM organizations WHERE slug = $1`, slug))
}

func (db *PostgresDatabase) UpdateOrganization(org *models.Organization) error {
	if org.ID == "" {
		return fmt.Errorf("organization ID is required for update")
	}
	query := `
		UPDATE organizations
		SET name = $1, slug = $2, description = $3, logo = $4, website = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`
	err := db.db.QueryRow(query, org.Name, org.Slug, org.Description, org.Logo, org.Website, org.ID).
		Scan(&org.UpdatedAt)
	if err != nil {
		if te := translateError(err); te == ErrConflict || te == ErrNotFound {
			return te
		}
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return nil
}

// DeleteOrganization cascades to memberships so no orphans are left.
func (db *PostgresDatabase) DeleteOrganization(id string) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM memberships WHERE organization_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete memberships: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (db *PostgresDatabase) ListOrganizations(page, perPage int, search string) ([]models.Organization, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	where := ""
	args := []interface{}{}
	if search != "" {
		where = `WHERE name ILIKE $1 OR description ILIKE $1`
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := db.db.QueryRow(`SELECT COUNT(*) FROM organizations `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count organizations: %w", err)
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`
		SELECT %s FROM organizations %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, orgColumns, where, len(args)-1, len(args))

	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []models.Organization
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.Description, &o.Logo, &o.Website, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, total, rows.Err()
}

func (db *PostgresDatabase) ListUserOrganizations(userID string) ([]models.Organization, error) {
	query := `
		SELECT o.id, o.name, o.slug, COALESCE(o.description,''), COALESCE(o.logo,''),
		       COALESCE(o.website,''), o.created_at, o.updated_at
		FROM organizations o
		JOIN memberships m ON m.organization_id = o.id
		WHERE m.user_id = $1
		ORDER BY o.created_at DESC
	`
	rows, err := db.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user organizations: %w", err)
	}
	defer rows.Close()

	var orgs []models.Organization
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.Description, &o.Logo, &o.Website, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// ==== Memberships ====

func (db *PostgresDatabase) CreateMembership(m *models.Membership) error {
	// Referenced entities must exist before the insert; the FK and unique
	// constraints below are the final arbiters.
	if _, err := db.GetUserByID(m.UserID); err != nil {
		return err
	}
	if _, err := db.GetOrganizationByID(m.OrganizationID); err != nil {
		return err
	}

	if m.Role == "" {
		m.Role = models.RoleMember
	}
	if m.Status == "" {
		m.Status = models.StatusPending
	}
	if m.InvitedAt.IsZero() {
		m.InvitedAt = time.Now()
	}

	query := `
		INSERT INTO memberships (user_id, organization_id, role, status, invited_by, invited_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, m.UserID, m.OrganizationID, m.Role, m.Status, m.InvitedBy, m.InvitedAt).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if te := translateError(err); te == ErrConflict || te == ErrNotFound {
			return te
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

const membershipColumns = `id, user_id, organization_id, role, status, invited_by, invited_at, created_at, updated_at`

func scanMembership(row *sql.Row) (*models.Membership, error) {
	var m models.Membership
	err := row.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.Status,
		&m.InvitedBy, &m.InvitedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

func (db *PostgresDatabase) GetMembership(id string) (*models.Membership, error) {
	return scanMembership(db.db.QueryRow(`SELECT `+membershipColumns+` FROM memberships WHERE id = $1`, id))
}

func (db *PostgresDatabase) FindMembership(userID, organizationID string) (*models.Membership, error) {
	return scanMembership(db.db.QueryRow(
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 AND organization_id = $2`,
		userID, organizationID))
}

func (db *PostgresDatabase) ListMembershipsByOrganization(organizationID string) ([]models.Membership, error) {
	rows, err := db.db.Query(
		`SELECT `+membershipColumns+` FROM memberships WHERE organization_id = $1 ORDER BY created_at`,
		organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.Status,
			&m.InvitedBy, &m.InvitedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

func (db *PostgresDatabase) ListOrganizationMembers(organizationID string) ([]models.Member, error) {
	query := `
		SELECT m.id, m.user_id, m.organization_id, m.role, m.status, m.invited_by,
		       m.invited_at, m.created_at, m.updated_at,
		       u.id, COALESCE(u.name,''), u.email, COALESCE(u.avatar,'')
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.created_at
	`
	rows, err := db.db.Query(query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.Status,
			&m.InvitedBy, &m.InvitedAt, &m.CreatedAt, &m.UpdatedAt,
			&m.User.ID, &m.User.Name, &m.User.Email, &m.User.Avatar); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (db *PostgresDatabase) UpdateMembership(m *models.Membership) error {
	if m.ID == "" {
		return fmt.Errorf("membership ID is required for update")
	}
	query := `
		UPDATE memberships
		SET role = $1, status = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	err := db.db.QueryRow(query, m.Role, m.Status, m.ID).Scan(&m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update membership: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteMembership(id string) error {
	result, err := db.db.Exec(`DELETE FROM memberships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ==== Notifications ====

func (db *PostgresDatabase) CreateNotification(n *models.Notification) error {
	n.FromUserEmail = normalizeEmail(n.FromUserEmail)
	n.ToUserEmail = normalizeEmail(n.ToUserEmail)
	query := `
		INSERT INTO notifications (type, from_user_email, to_user_email, is_read, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, n.Type, n.FromUserEmail, n.ToUserEmail, n.IsRead, []byte(n.Data)).
		Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetNotificationByID(id string) (*models.Notification, error) {
	query := `
		SELECT id, type, from_user_email, to_user_email, is_read, data, created_at, updated_at
		FROM notifications WHERE id = $1
	`
	var n models.Notification
	var data []byte
	err := db.db.QueryRow(query, id).Scan(
		&n.ID, &n.Type, &n.FromUserEmail, &n.ToUserEmail, &n.IsRead, &data, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	n.Data = data
	return &n, nil
}

func (db *PostgresDatabase) ListNotificationsByEmail(email string) ([]models.Notification, error) {
	query := `
		SELECT id, type, from_user_email, to_user_email, is_read, data, created_at, updated_at
		FROM notifications
		WHERE to_user_email = $1
		ORDER BY created_at DESC
	`
	rows, err := db.db.Query(query, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var data []byte
		if err := rows.Scan(&n.ID, &n.Type, &n.FromUserEmail, &n.ToUserEmail, &n.IsRead,
			&data, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Data = data
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (db *PostgresDatabase) MarkNotificationRead(id string) error {
	result, err := db.db.Exec(`UPDATE notifications SET is_read = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDatabase) MarkAllNotificationsRead(email string) error {
	_, err := db.db.Exec(
		`UPDATE notifications SET is_read = TRUE, updated_at = NOW() WHERE to_user_email = $1`,
		normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// SetInviteAccepted flips data.accepted in a single update; per-row
// atomicity makes the flip idempotent.
func (db *PostgresDatabase) SetInviteAccepted(id string) error {
	query := `
		UPDATE notifications
		SET data = jsonb_set(data, '{accepted}', 'true'), updated_at = NOW()
		WHERE id = $1 AND type = 'invite'
	`
	result, err := db.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to accept invite notification: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDatabase) HealthCheck() error {
	return db.db.Ping()
}

func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
