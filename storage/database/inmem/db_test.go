package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/reviewer"
)

func TestDB_WithTransaction(t *testing.T) {
	ctx := context.Background()
	db := Open()
	revRepo := NewReviewerRepository(db)
	compRepo := NewCompanyRepository(db)

	rev, err := revRepo.CreateReviewer(ctx, reviewer.Reviewer{Name: "Kim Seo", Grade: reviewer.GradeJunior})
	require.NoError(t, err)

	t.Run("rolled back", func(t *testing.T) {
		err := db.WithTransaction(ctx, func(ctx context.Context) error {
			if _, err := compRepo.CreateCompany(ctx, company.Company{Name: "Hanbit Steel", BusinessNumber: "124-81-00998"}); err != nil {
				return err
			}
			return errors.New("disk full")
		})
		require.EqualError(t, err, "disk full")

		comps, err := compRepo.QueryCompanies(ctx, &company.QueryFilter{}, nil)
		require.NoError(t, err)
		assert.Empty(t, comps)
	})

	t.Run("committed", func(t *testing.T) {
		err := db.WithTransaction(ctx, func(ctx context.Context) error {
			_, err := compRepo.CreateCompany(ctx, company.Company{Name: "Hanbit Steel", BusinessNumber: "124-81-00998"})
			return err
		})
		require.NoError(t, err)

		comps, err := compRepo.QueryCompanies(ctx, &company.QueryFilter{}, nil)
		require.NoError(t, err)
		assert.Len(t, comps, 1)
	})

	t.Run("concurrent write survives a rollback", func(t *testing.T) {
		inTx := make(chan struct{})
		proceed := make(chan struct{})
		txDone := make(chan error, 1)
		go func() {
			txDone <- db.WithTransaction(ctx, func(ctx context.Context) error {
				if _, err := compRepo.CreateCompany(ctx, company.Company{Name: "Daon Foods", BusinessNumber: "211-86-00002"}); err != nil {
					return err
				}
				close(inTx)
				<-proceed
				return errors.New("rejected")
			})
		}()
		<-inTx

		updated := make(chan error, 1)
		go func() {
			r := rev
			r.Grade = reviewer.GradeSenior
			_, err := revRepo.UpdateReviewer(ctx, r)
			updated <- err
		}()

		select {
		case <-updated:
			t.Fatal("write outside the transaction did not wait for it")
		case <-time.After(50 * time.Millisecond):
		}
		close(proceed)

		require.EqualError(t, <-txDone, "rejected")
		require.NoError(t, <-updated)

		got, err := revRepo.GetReviewer(ctx, reviewer.GetFilter{ID: rev.ID})
		require.NoError(t, err)
		assert.Equal(t, reviewer.GradeSenior, got.Grade)

		comps, err := compRepo.QueryCompanies(ctx, &company.QueryFilter{}, nil)
		require.NoError(t, err)
		assert.Len(t, comps, 1)
	})
}
