package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/amirphl/raiot-portal/app/dto"
	"github.com/amirphl/raiot-portal/models"
	"github.com/amirphl/raiot-portal/repository"
	"github.com/amirphl/raiot-portal/utils"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ProfileFlow handles member onboarding and the profile completeness check
type ProfileFlow interface {
	Register(ctx context.Context, req *dto.RegisterMemberRequest) (*dto.ProfileStatusResponse, error)
	GetProfile(ctx context.Context, memberID uint) (*dto.ProfileStatusResponse, error)
	UpdateProfile(ctx context.Context, memberID uint, req *dto.UpdateProfileRequest) (*dto.ProfileStatusResponse, error)
}

type ProfileFlowImpl struct {
	memberRepo   repository.MemberRepository
	auditRepo    repository.AuditLogRepository
	uniqueIDFlow UniqueIDFlow
	logger       *log.Logger
}

func NewProfileFlow(
	memberRepo repository.MemberRepository,
	auditRepo repository.AuditLogRepository,
	uniqueIDFlow UniqueIDFlow,
	logger *log.Logger,
) ProfileFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &ProfileFlowImpl{
		memberRepo:   memberRepo,
		auditRepo:    auditRepo,
		uniqueIDFlow: uniqueIDFlow,
		logger:       logger,
	}
}

func (f *ProfileFlowImpl) Register(ctx context.Context, req *dto.RegisterMemberRequest) (*dto.ProfileStatusResponse, error) {
	if req == nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "Request body is required", ErrInvalidRequest)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	existing, err := f.memberRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("MEMBER_FETCH_FAILED", "Failed to check email", err)
	}
	if existing != nil {
		return nil, NewBusinessError("EMAIL_ALREADY_EXISTS", "A member with this email already exists", ErrEmailAlreadyExists)
	}

	role := models.MemberRoleMember
	if req.Guest {
		role = models.MemberRoleGuest
	}

	member := &models.Member{
		UUID:        uuid.New(),
		Email:       email,
		FullName:    strings.TrimSpace(req.FullName),
		Phone:       utils.TrimPtr(req.Phone),
		Department:  utils.TrimPtr(req.Department),
		YearOfStudy: req.YearOfStudy,
		RollNumber:  utils.TrimPtr(req.RollNumber),
		Role:        role,
		IsActive:    utils.ToPtr(true),
	}

	if err := f.memberRepo.Save(ctx, member); err != nil {
		if isUniqueViolation(err) {
			return nil, NewBusinessError("EMAIL_ALREADY_EXISTS", "A member with this email already exists", ErrEmailAlreadyExists)
		}
		return nil, NewBusinessError("MEMBER_REGISTER_FAILED", "Failed to register member", err)
	}

	msg := fmt.Sprintf("Member registered: %d", member.ID)
	f.createAuditLog(ctx, member, models.AuditActionMemberRegistered, msg)

	resp := f.validateProfile(ctx, member)
	resp.Message = "Member registered"
	return resp, nil
}

func (f *ProfileFlowImpl) GetProfile(ctx context.Context, memberID uint) (*dto.ProfileStatusResponse, error) {
	member, err := f.loadMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	resp := f.validateProfile(ctx, member)
	resp.Message = "Member profile retrieved"
	return resp, nil
}

func (f *ProfileFlowImpl) UpdateProfile(ctx context.Context, memberID uint, req *dto.UpdateProfileRequest) (*dto.ProfileStatusResponse, error) {
	if req == nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "Request body is required", ErrInvalidRequest)
	}

	member, err := f.loadMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	var changed []string
	if req.FullName != nil {
		member.FullName = strings.TrimSpace(*req.FullName)
		changed = append(changed, "full_name")
	}
	if req.Phone != nil {
		member.Phone = utils.TrimPtr(req.Phone)
		changed = append(changed, "phone")
	}
	if req.Department != nil {
		member.Department = utils.TrimPtr(req.Department)
		changed = append(changed, "department")
	}
	if req.YearOfStudy != nil {
		member.YearOfStudy = req.YearOfStudy
		changed = append(changed, "year_of_study")
	}
	if req.RollNumber != nil {
		member.RollNumber = utils.TrimPtr(req.RollNumber)
		changed = append(changed, "roll_number")
	}
	if len(changed) == 0 {
		return nil, NewBusinessError("PROFILE_UPDATE_EMPTY", "No profile fields provided", ErrProfileUpdateEmpty)
	}

	if err := f.memberRepo.UpdateProfile(ctx, member); err != nil {
		return nil, NewBusinessError("PROFILE_UPDATE_FAILED", "Failed to update profile", err)
	}

	msg := fmt.Sprintf("Profile updated for member %d: %s", member.ID, strings.Join(changed, ", "))
	f.createAuditLog(ctx, member, models.AuditActionProfileUpdated, msg)

	resp := f.validateProfile(ctx, member)
	resp.Message = "Member profile updated"
	return resp, nil
}

func (f *ProfileFlowImpl) loadMember(ctx context.Context, memberID uint) (*models.Member, error) {
	if memberID == 0 {
		return nil, NewBusinessError("MEMBER_ID_REQUIRED", "member_id must be greater than 0", ErrMemberNotFound)
	}
	member, err := f.memberRepo.ByID(ctx, memberID)
	if err != nil {
		return nil, NewBusinessError("MEMBER_FETCH_FAILED", "Failed to fetch member", err)
	}
	if member == nil {
		return nil, NewBusinessError("MEMBER_NOT_FOUND", "Member not found", ErrMemberNotFound)
	}
	return member, nil
}

// validateProfile computes missing fields and, the first time a non-guest
// profile is found complete, obtains its unique ID. Allocation failures are
// reported as pending and never surface as a complete profile.
func (f *ProfileFlowImpl) validateProfile(ctx context.Context, member *models.Member) *dto.ProfileStatusResponse {
	missing := member.MissingProfileFields()
	if missing == nil {
		missing = []string{}
	}

	resp := &dto.ProfileStatusResponse{MissingFields: missing}
	needsUniqueID := !member.IsGuest() && utils.IsTrue(member.IsActive)

	if len(missing) == 0 && needsUniqueID && !member.HasUniqueID() {
		res, err := f.uniqueIDFlow.AllocateAndAssign(ctx, member.ID)
		if err != nil {
			f.logger.Printf("profile: unique id for member id=%d pending: %v", member.ID, err)
			resp.UniqueIDPending = true
		} else if fresh, err := f.memberRepo.ByID(ctx, member.ID); err == nil && fresh != nil {
			member = fresh
		} else {
			member.UniqueID = &res.UniqueID
		}
	}

	resp.Member = ToMemberProfileDTO(member)
	resp.IsComplete = len(missing) == 0 && (!needsUniqueID || member.HasUniqueID())
	return resp
}

func (f *ProfileFlowImpl) createAuditLog(ctx context.Context, member *models.Member, action, description string) {
	audit := &models.AuditLog{
		MemberID:    &member.ID,
		Action:      action,
		Description: &description,
		Success:     utils.ToPtr(true),
	}
	if requestID := utils.RequestIDFromContext(ctx); requestID != "" {
		audit.RequestID = &requestID
	}
	if err := f.auditRepo.Save(ctx, audit); err != nil {
		f.logger.Printf("profile: failed to write %s audit log for member id=%d: %v", action, member.ID, err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
