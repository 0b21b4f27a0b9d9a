package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/raiot-portal/app/dto"
	"github.com/amirphl/raiot-portal/models"
	"github.com/amirphl/raiot-portal/repository"
	"github.com/amirphl/raiot-portal/utils"
	"github.com/xuri/excelize/v2"
)

const (
	memberExportSheet     = "members"
	memberExportPageSize  = 500
	memberExportTimestamp = "20060102T150405Z"
)

var memberExportHeader = []string{
	"id", "uuid", "unique_id", "unique_id_assigned_at", "full_name", "email", "phone",
	"department", "year_of_study", "roll_number", "role", "is_active", "created_at",
}

// MemberExportFlow builds the member registry spreadsheet
type MemberExportFlow interface {
	ExportMembers(ctx context.Context, req *dto.ExportMembersRequest) (string, []byte, error)
}

type MemberExportFlowImpl struct {
	memberRepo repository.MemberRepository
}

func NewMemberExportFlow(memberRepo repository.MemberRepository) MemberExportFlow {
	return &MemberExportFlowImpl{memberRepo: memberRepo}
}

// ExportMembers returns a file name and xlsx bytes listing members ordered by unique ID, then id.
func (f *MemberExportFlowImpl) ExportMembers(ctx context.Context, req *dto.ExportMembersRequest) (string, []byte, error) {
	filter := models.MemberFilter{}
	if req != nil {
		if req.OnlyAssigned {
			filter.HasUniqueID = utils.ToPtr(true)
		}
		filter.Role = req.Role
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	xl.SetSheetName(xl.GetSheetName(0), memberExportSheet)
	header := memberExportHeader
	_ = xl.SetSheetRow(memberExportSheet, "A1", &header)

	row := 2
	for offset := 0; ; offset += memberExportPageSize {
		members, err := f.memberRepo.ByFilter(ctx, filter, "unique_id ASC NULLS LAST, id ASC", memberExportPageSize, offset)
		if err != nil {
			return "", nil, NewBusinessError("FETCH_MEMBERS_FAILED", "Failed to fetch members", err)
		}

		for _, m := range members {
			record := memberExportRecord(m)
			cellRef, _ := excelize.CoordinatesToCellName(1, row)
			if err := xl.SetSheetRow(memberExportSheet, cellRef, &record); err != nil {
				return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel row", err)
			}
			row++
		}

		if len(members) < memberExportPageSize {
			break
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("raiot_members_%s.xlsx", utils.UTCNow().Format(memberExportTimestamp))
	return filename, buf.Bytes(), nil
}

func memberExportRecord(m *models.Member) []string {
	assignedAt := ""
	if m.UniqueIDAssignedAt != nil {
		assignedAt = m.UniqueIDAssignedAt.UTC().Format(time.RFC3339)
	}
	year := ""
	if m.YearOfStudy != nil {
		year = strconv.Itoa(*m.YearOfStudy)
	}
	return []string{
		strconv.FormatUint(uint64(m.ID), 10),
		m.UUID.String(),
		utils.Deref(m.UniqueID),
		assignedAt,
		m.FullName,
		m.Email,
		utils.Deref(m.Phone),
		utils.Deref(m.Department),
		year,
		utils.Deref(m.RollNumber),
		m.Role,
		strconv.FormatBool(utils.IsTrue(m.IsActive)),
		m.CreatedAt.UTC().Format(time.RFC3339),
	}
}
