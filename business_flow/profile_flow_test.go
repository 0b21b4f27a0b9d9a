package businessflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/amirphl/raiot-portal/app/dto"
	"github.com/amirphl/raiot-portal/models"
	"github.com/amirphl/raiot-portal/repository"
	"github.com/amirphl/raiot-portal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfileFixture() (*uniqueIDFixture, ProfileFlow) {
	fx := newUniqueIDFixture()
	return fx, NewProfileFlow(fx.members, fx.audit, fx.flow, quietLogger)
}

func completeRegistration() *dto.RegisterMemberRequest {
	return &dto.RegisterMemberRequest{
		Email:       "  Grace@Example.com ",
		FullName:    "Grace Hopper",
		Phone:       utils.ToPtr("+919812345678"),
		Department:  utils.ToPtr("Computer Science"),
		YearOfStudy: utils.ToPtr(4),
		RollNumber:  utils.ToPtr("CS20B001"),
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("CompleteProfileReceivesID", func(t *testing.T) {
		fx, flow := newProfileFixture()

		resp, err := flow.Register(ctx, completeRegistration())
		require.NoError(t, err)
		assert.Equal(t, "grace@example.com", resp.Member.Email)
		assert.True(t, resp.IsComplete)
		assert.False(t, resp.UniqueIDPending)
		assert.Empty(t, resp.MissingFields)
		require.NotNil(t, resp.Member.UniqueID)
		assert.Equal(t, "RAIoT00001", *resp.Member.UniqueID)
		assert.Len(t, fx.audit.actions(models.AuditActionMemberRegistered), 1)
	})

	t.Run("PartialProfileWaits", func(t *testing.T) {
		fx, flow := newProfileFixture()

		resp, err := flow.Register(ctx, &dto.RegisterMemberRequest{Email: "a@example.com", FullName: "Alan Turing"})
		require.NoError(t, err)
		assert.False(t, resp.IsComplete)
		assert.ElementsMatch(t, []string{"phone", "department", "year_of_study", "roll_number"}, resp.MissingFields)
		assert.Nil(t, resp.Member.UniqueID)
		assert.Equal(t, int64(0), fx.store.count(models.UniqueIDCounterName))
	})

	t.Run("GuestIsCompleteWithoutID", func(t *testing.T) {
		_, flow := newProfileFixture()
		req := completeRegistration()
		req.Guest = true

		resp, err := flow.Register(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, models.MemberRoleGuest, resp.Member.Role)
		assert.True(t, resp.IsComplete)
		assert.Nil(t, resp.Member.UniqueID)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		_, flow := newProfileFixture()
		_, err := flow.Register(ctx, completeRegistration())
		require.NoError(t, err)

		_, err = flow.Register(ctx, completeRegistration())
		assert.True(t, IsEmailAlreadyExists(err))
	})

	t.Run("NilRequest", func(t *testing.T) {
		_, flow := newProfileFixture()
		_, err := flow.Register(ctx, nil)
		assert.True(t, IsInvalidRequest(err))
	})
}

func TestGetProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("AllocationFailureIsPending", func(t *testing.T) {
		fx, flow := newProfileFixture()
		m := fx.members.add(completeMember())
		fx.store.failWith = fmt.Errorf("%w: down", repository.ErrStoreUnavailable)

		resp, err := flow.GetProfile(ctx, m.ID)
		require.NoError(t, err)
		assert.True(t, resp.UniqueIDPending)
		assert.False(t, resp.IsComplete, "never complete without an identifier")
		assert.Empty(t, resp.MissingFields)

		// once the store recovers the next pass assigns the identifier
		fx.store.failWith = nil
		resp, err = flow.GetProfile(ctx, m.ID)
		require.NoError(t, err)
		assert.True(t, resp.IsComplete)
		assert.False(t, resp.UniqueIDPending)
		require.NotNil(t, resp.Member.UniqueID)
		assert.Equal(t, "RAIoT00001", *resp.Member.UniqueID)
	})

	t.Run("RepeatedChecksAllocateOnce", func(t *testing.T) {
		fx, flow := newProfileFixture()
		m := fx.members.add(completeMember())

		for i := 0; i < 3; i++ {
			resp, err := flow.GetProfile(ctx, m.ID)
			require.NoError(t, err)
			assert.Equal(t, "RAIoT00001", *resp.Member.UniqueID)
		}
		assert.Equal(t, int64(1), fx.store.count(models.UniqueIDCounterName))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, flow := newProfileFixture()
		_, err := flow.GetProfile(ctx, 99)
		assert.True(t, IsMemberNotFound(err))

		_, err = flow.GetProfile(ctx, 0)
		assert.True(t, IsMemberNotFound(err))
	})
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("CompletingProfileAssignsID", func(t *testing.T) {
		fx, flow := newProfileFixture()
		m := completeMember()
		m.Department = nil
		m.YearOfStudy = nil
		m = fx.members.add(m)

		resp, err := flow.GetProfile(ctx, m.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"department", "year_of_study"}, resp.MissingFields)

		resp, err = flow.UpdateProfile(ctx, m.ID, &dto.UpdateProfileRequest{
			Department:  utils.ToPtr(" Physics "),
			YearOfStudy: utils.ToPtr(1),
		})
		require.NoError(t, err)
		assert.True(t, resp.IsComplete)
		assert.Equal(t, "Physics", *resp.Member.Department)
		assert.Equal(t, "RAIoT00001", *resp.Member.UniqueID)
		assert.Len(t, fx.audit.actions(models.AuditActionProfileUpdated), 1)
	})

	t.Run("BlankingAFieldMakesItMissing", func(t *testing.T) {
		fx, flow := newProfileFixture()
		m := completeMember()
		m.UniqueID = utils.ToPtr("RAIoT00003")
		m = fx.members.add(m)

		resp, err := flow.UpdateProfile(ctx, m.ID, &dto.UpdateProfileRequest{Phone: utils.ToPtr("  ")})
		require.NoError(t, err)
		assert.Equal(t, []string{"phone"}, resp.MissingFields)
		assert.False(t, resp.IsComplete)
		assert.Equal(t, "RAIoT00003", *resp.Member.UniqueID, "identifier is immutable")
	})

	t.Run("EmptyUpdate", func(t *testing.T) {
		fx, flow := newProfileFixture()
		m := fx.members.add(completeMember())

		_, err := flow.UpdateProfile(ctx, m.ID, &dto.UpdateProfileRequest{})
		assert.True(t, IsProfileUpdateEmpty(err))
	})
}
