package testing

import (
	"fmt"
	"math/rand"

	"github.com/amirphl/raiot-portal/models"
	"github.com/amirphl/raiot-portal/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CompleteProfile fills every required profile field of m.
func CompleteProfile(m *models.Member) {
	digits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)
	if m.FullName == "" {
		m.FullName = "Ada Lovelace"
	}
	m.Phone = utils.ToPtr("+91" + digits[:9] + "0")
	m.Department = utils.ToPtr("Electronics and Communication")
	m.YearOfStudy = utils.ToPtr(2)
	m.RollNumber = utils.ToPtr("ECE" + digits[:6])
}

// NewMember builds an unsaved active member with a random email.
func NewMember(complete bool) *models.Member {
	m := &models.Member{
		UUID:     uuid.New(),
		Email:    fmt.Sprintf("member.%s@example.com", uuid.NewString()[:8]),
		FullName: "Ada Lovelace",
		Role:     models.MemberRoleMember,
		IsActive: utils.ToPtr(true),
	}
	if complete {
		CompleteProfile(m)
	}
	return m
}

// CreateTestMember inserts a member, optionally with a complete profile
func (tf *TestFixtures) CreateTestMember(complete bool) (*models.Member, error) {
	m := NewMember(complete)
	if err := tf.DB.DB.Create(m).Error; err != nil {
		return nil, fmt.Errorf("failed to create test member: %w", err)
	}
	return m, nil
}

// CreateTestCounter seeds a counter row with the given count
func (tf *TestFixtures) CreateTestCounter(name string, count int64) (*models.SequenceCounter, error) {
	c := &models.SequenceCounter{Name: name, Count: count}
	if err := tf.DB.DB.Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to create test counter: %w", err)
	}
	return c, nil
}
