// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/raiot-portal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// profileCompleteSQL mirrors models.Member.MissingProfileFields, so blank
// means empty after stripping ASCII whitespace, not just spaces
const profileCompleteSQL = "COALESCE(BTRIM(full_name, " + sqlWhitespace + "), '') <> '' AND " +
	"COALESCE(BTRIM(email, " + sqlWhitespace + "), '') <> '' AND " +
	"COALESCE(BTRIM(phone, " + sqlWhitespace + "), '') <> '' AND " +
	"COALESCE(BTRIM(department, " + sqlWhitespace + "), '') <> '' AND " +
	"COALESCE(BTRIM(roll_number, " + sqlWhitespace + "), '') <> '' AND " +
	"COALESCE(year_of_study BETWEEN ? AND ?, FALSE)"

const sqlWhitespace = `E' \t\n\x0B\f\r'`

// MemberRepositoryImpl implements MemberRepository interface
type MemberRepositoryImpl struct {
	*BaseRepository[models.Member, models.MemberFilter]
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &MemberRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Member, models.MemberFilter](db),
	}
}

// applyFilter applies filter criteria to a GORM query
func (r *MemberRepositoryImpl) applyFilter(query *gorm.DB, filter models.MemberFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Email != nil {
		query = query.Where("email = ?", *filter.Email)
	}
	if filter.Role != nil {
		query = query.Where("role = ?", *filter.Role)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.UniqueID != nil {
		query = query.Where("unique_id = ?", *filter.UniqueID)
	}
	if filter.HasUniqueID != nil {
		if *filter.HasUniqueID {
			query = query.Where("unique_id IS NOT NULL")
		} else {
			query = query.Where("unique_id IS NULL")
		}
	}
	if filter.ProfileComplete != nil {
		if *filter.ProfileComplete {
			query = query.Where(profileCompleteSQL, models.MinYearOfStudy, models.MaxYearOfStudy)
		} else {
			query = query.Where("NOT ("+profileCompleteSQL+")", models.MinYearOfStudy, models.MaxYearOfStudy)
		}
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

func (r *MemberRepositoryImpl) ByFilter(ctx context.Context, filter models.MemberFilter, orderBy string, limit, offset int) ([]*models.Member, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Member{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Member
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MemberRepositoryImpl) Count(ctx context.Context, filter models.MemberFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Member{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MemberRepositoryImpl) Exists(ctx context.Context, filter models.MemberFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *MemberRepositoryImpl) first(ctx context.Context, filter models.MemberFilter) (*models.Member, error) {
	rows, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByUUID retrieves a member by its public UUID
func (r *MemberRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	m, err := r.first(ctx, models.MemberFilter{UUID: &id})
	if err != nil {
		return nil, fmt.Errorf("failed to find member by uuid: %w", err)
	}
	return m, nil
}

// ByEmail retrieves a member by email address
func (r *MemberRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Member, error) {
	m, err := r.first(ctx, models.MemberFilter{Email: &email})
	if err != nil {
		return nil, fmt.Errorf("failed to find member by email: %w", err)
	}
	return m, nil
}

// ByUniqueID retrieves a member by the identifier issued by the allocator
func (r *MemberRepositoryImpl) ByUniqueID(ctx context.Context, uniqueID string) (*models.Member, error) {
	m, err := r.first(ctx, models.MemberFilter{UniqueID: &uniqueID})
	if err != nil {
		return nil, fmt.Errorf("failed to find member by unique id: %w", err)
	}
	return m, nil
}

// UpdateProfile writes the editable profile columns. It never touches unique_id.
func (r *MemberRepositoryImpl) UpdateProfile(ctx context.Context, member *models.Member) error {
	db := r.getDB(ctx)

	res := db.Model(&models.Member{}).
		Where("id = ?", member.ID).
		Updates(map[string]any{
			"full_name":     member.FullName,
			"phone":         member.Phone,
			"department":    member.Department,
			"year_of_study": member.YearOfStudy,
			"roll_number":   member.RollNumber,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update member profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to update member profile: member %d not found", member.ID)
	}
	return nil
}

func (r *MemberRepositoryImpl) AssignUniqueID(ctx context.Context, memberID uint, uniqueID string, assignedAt time.Time) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.Member{}).
		Where("id = ? AND unique_id IS NULL", memberID).
		Updates(map[string]any{
			"unique_id":             uniqueID,
			"unique_id_assigned_at": assignedAt.UTC(),
			"updated_at":            time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to assign unique id: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *MemberRepositoryImpl) ListPendingUniqueID(ctx context.Context, afterID uint, limit int) ([]*models.Member, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Member{}).
		Where("id > ?", afterID).
		Where("is_active = ?", true).
		Where("role <> ?", models.MemberRoleGuest)
	query = r.applyFilter(query, models.MemberFilter{
		HasUniqueID:     &[]bool{false}[0],
		ProfileComplete: &[]bool{true}[0],
	})
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []*models.Member
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list members pending unique id: %w", err)
	}
	return rows, nil
}
