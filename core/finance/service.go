package finance

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/reviewer"
	"github.com/kcci/portal/core/user"
)

var (
	ErrCostNotFound       = core.NewNotFoundError("cost item")
	ErrRevenueNotFound    = core.NewNotFoundError("revenue item")
	ErrSettlementNotFound = core.NewNotFoundError("settlement")
	ErrStaleVersion       = core.NewConflictError("this item has been modified in the meantime; reload it and try again")
	ErrSettledItem        = core.NewConflictError("settled cost items cannot be modified")
	ErrNothingToSettle    = errors.New("there are no unpaid cost items to settle in this period")
)

type (
	Repository interface {
		CreateCost(ctx context.Context, item CostItem) (CostItem, error)
		QueryCosts(ctx context.Context, filter *CostFilter, ordering []core.DBOrdering) ([]CostItem, error)
		GetCost(ctx context.Context, id string) (CostItem, error)
		// UpdateCost stores item only if the stored version still equals version,
		// and bumps item.Version. It returns ErrStaleVersion otherwise.
		UpdateCost(ctx context.Context, item CostItem, version int) (CostItem, error)
		// DeleteCostsByID deletes the unsettled cost items among ids and returns how many were deleted.
		DeleteCostsByID(ctx context.Context, ids ...string) (int, error)

		CreateRevenue(ctx context.Context, item RevenueItem) (RevenueItem, error)
		QueryRevenues(ctx context.Context, filter *RevenueFilter, ordering []core.DBOrdering) ([]RevenueItem, error)
		GetRevenue(ctx context.Context, id string) (RevenueItem, error)
		// UpdateRevenue follows the same versioning rules as UpdateCost.
		UpdateRevenue(ctx context.Context, item RevenueItem, version int) (RevenueItem, error)
		DeleteRevenuesByID(ctx context.Context, ids ...string) (int, error)

		CreateSettlement(ctx context.Context, stl Settlement) (Settlement, error)
		QuerySettlements(ctx context.Context, filter *SettlementFilter, ordering []core.DBOrdering) ([]Settlement, error)
		GetSettlement(ctx context.Context, id string) (Settlement, error)
	}

	ReviewerGetter interface {
		Get(ctx context.Context, id string) (reviewer.Reviewer, error)
	}

	CompanyGetter interface {
		Get(ctx context.Context, id string) (company.Company, error)
	}

	Deps struct {
		Repo      Repository
		Reviewers ReviewerGetter
		Companies CompanyGetter
		Tx        core.TxManager
		MailSvc   core.EmailService
		Events    core.EventPublisher
		Logger    core.Logger
		Currency  string
	}

	Service struct {
		Deps
	}
)

func NewService(deps Deps) *Service {
	return &Service{Deps: deps}
}

// Cost items

func (svc *Service) CreateCost(ctx context.Context, nc NewCostItem) (CostItem, error) {
	if _, err := svc.Reviewers.Get(ctx, nc.ReviewerID); err != nil {
		return CostItem{}, err
	}
	now := time.Now().UTC()
	item := CostItem{
		ReviewerID:  nc.ReviewerID,
		Category:    nc.Category,
		Description: nc.Description,
		Amount:      nc.Amount,
		IncurredOn:  core.StartOfDay(nc.IncurredOn),
		Status:      StatusUnpaid,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.Repo.CreateCost(ctx, item)
}

func (svc *Service) QueryCosts(ctx context.Context, filter *CostFilter, ordering []core.DBOrdering) ([]CostItem, error) {
	return svc.Repo.QueryCosts(ctx, filter, ordering)
}

func (svc *Service) GetCost(ctx context.Context, id string) (CostItem, error) {
	return svc.Repo.GetCost(ctx, id)
}

func (svc *Service) UpdateCost(ctx context.Context, id string, uc UpdateCostItem) (CostItem, error) {
	item, err := svc.Repo.GetCost(ctx, id)
	if err != nil {
		return item, err
	}
	if item.IsSettled() {
		return item, ErrSettledItem
	}
	if item.Version != uc.Version {
		return item, ErrStaleVersion
	}

	if uc.Category != "" {
		item.Category = uc.Category
	}
	if uc.Description != nil {
		item.Description = *uc.Description
	}
	if uc.Amount.Valid {
		item.Amount = uc.Amount.Decimal
	}
	if !uc.IncurredOn.IsZero() {
		item.IncurredOn = core.StartOfDay(uc.IncurredOn)
	}
	item.UpdatedAt = time.Now().UTC()
	return svc.Repo.UpdateCost(ctx, item, uc.Version)
}

// DeleteCosts deletes the cost items, unless any of them is settled.
func (svc *Service) DeleteCosts(ctx context.Context, ids ...string) (int, error) {
	var deleted int
	err := svc.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		var found int
		for _, id := range ids {
			item, err := svc.Repo.GetCost(ctx, id)
			if errors.Cause(err) == ErrCostNotFound {
				continue
			} else if err != nil {
				return err
			}
			if item.IsSettled() {
				return ErrSettledItem
			}
			found++
		}
		var err error
		if deleted, err = svc.Repo.DeleteCostsByID(ctx, ids...); err != nil {
			return err
		}
		// settled since it was read
		if deleted < found {
			return ErrSettledItem
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// SetCostStatus toggles the payment status of a cost item the client last saw at sc.Version.
// Settled items are paid for good.
func (svc *Service) SetCostStatus(ctx context.Context, id string, sc StatusChange, actor user.User) (CostItem, error) {
	item, err := svc.Repo.GetCost(ctx, id)
	if err != nil {
		return item, err
	}
	if item.Version != sc.Version {
		return item, ErrStaleVersion
	}
	if item.Status == sc.Status {
		return item, nil
	}
	if item.IsSettled() {
		return item, ErrSettledItem
	}

	item.Status = sc.Status
	item.PaidAt = paidAt(sc.Status)
	item.UpdatedAt = time.Now().UTC()
	if item, err = svc.Repo.UpdateCost(ctx, item, sc.Version); err != nil {
		return item, err
	}
	svc.publish(ctx, core.NewEvent(core.EventPaymentStatusChanged, actor.ID, statusEventData("cost", item.ID, item.Status, item.Version)))
	return item, nil
}

// Revenue items

func (svc *Service) CreateRevenue(ctx context.Context, nr NewRevenueItem) (RevenueItem, error) {
	if _, err := svc.Companies.Get(ctx, nr.CompanyID); err != nil {
		return RevenueItem{}, err
	}
	now := time.Now().UTC()
	item := RevenueItem{
		CompanyID:   nr.CompanyID,
		Category:    nr.Category,
		Description: nr.Description,
		Amount:      nr.Amount,
		DueDate:     core.StartOfDay(nr.DueDate),
		Status:      StatusUnpaid,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.Repo.CreateRevenue(ctx, item)
}

func (svc *Service) QueryRevenues(ctx context.Context, filter *RevenueFilter, ordering []core.DBOrdering) ([]RevenueItem, error) {
	return svc.Repo.QueryRevenues(ctx, filter, ordering)
}

func (svc *Service) GetRevenue(ctx context.Context, id string) (RevenueItem, error) {
	return svc.Repo.GetRevenue(ctx, id)
}

func (svc *Service) UpdateRevenue(ctx context.Context, id string, ur UpdateRevenueItem) (RevenueItem, error) {
	item, err := svc.Repo.GetRevenue(ctx, id)
	if err != nil {
		return item, err
	}
	if item.Version != ur.Version {
		return item, ErrStaleVersion
	}

	if ur.Category != "" {
		item.Category = ur.Category
	}
	if ur.Description != nil {
		item.Description = *ur.Description
	}
	if ur.Amount.Valid {
		item.Amount = ur.Amount.Decimal
	}
	if !ur.DueDate.IsZero() {
		item.DueDate = core.StartOfDay(ur.DueDate)
	}
	item.UpdatedAt = time.Now().UTC()
	return svc.Repo.UpdateRevenue(ctx, item, ur.Version)
}

func (svc *Service) DeleteRevenues(ctx context.Context, ids ...string) (int, error) {
	return svc.Repo.DeleteRevenuesByID(ctx, ids...)
}

// SetRevenueStatus toggles the payment status of a revenue item the client last saw at sc.Version.
func (svc *Service) SetRevenueStatus(ctx context.Context, id string, sc StatusChange, actor user.User) (RevenueItem, error) {
	item, err := svc.Repo.GetRevenue(ctx, id)
	if err != nil {
		return item, err
	}
	if item.Version != sc.Version {
		return item, ErrStaleVersion
	}
	if item.Status == sc.Status {
		return item, nil
	}

	item.Status = sc.Status
	item.PaidAt = paidAt(sc.Status)
	item.UpdatedAt = time.Now().UTC()
	if item, err = svc.Repo.UpdateRevenue(ctx, item, sc.Version); err != nil {
		return item, err
	}
	svc.publish(ctx, core.NewEvent(core.EventPaymentStatusChanged, actor.ID, statusEventData("revenue", item.ID, item.Status, item.Version)))
	return item, nil
}

// Settlements

// Settle pays every unpaid and unsettled cost item of the reviewer incurred within the period.
// The reviewer is mailed the settlement statement once the transaction is committed.
func (svc *Service) Settle(ctx context.Context, ns NewSettlement, admin user.User) (Settlement, error) {
	var (
		stl Settlement
		rev reviewer.Reviewer
	)
	err := svc.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if rev, err = svc.Reviewers.Get(ctx, ns.ReviewerID); err != nil {
			return err
		}

		from, to := core.StartOfDay(ns.PeriodFrom), core.EndOfDay(ns.PeriodTo)
		filter := &CostFilter{
			ReviewerIDs: []string{rev.ID},
			Statuses:    []PaymentStatus{StatusUnpaid},
			From:        from,
			To:          to,
			Settled:     core.BoolPtr(false),
		}
		items, err := svc.Repo.QueryCosts(ctx, filter, []core.DBOrdering{{Field: "incurred_on", Ascending: true}})
		if err != nil {
			return errors.Wrap(err, "querying unsettled cost items")
		}
		if len(items) == 0 {
			return core.NewValidationError(ErrNothingToSettle)
		}

		now := time.Now().UTC()
		stl = Settlement{
			ReviewerID: rev.ID,
			PeriodFrom: core.StartOfDay(from),
			PeriodTo:   core.StartOfDay(to),
			Total:      decimal.Zero,
			ItemCount:  len(items),
			Note:       ns.Note,
			SettledBy:  admin.ID,
			SettledAt:  now,
		}
		for _, item := range items {
			stl.Total = stl.Total.Add(item.Amount)
		}
		if stl, err = svc.Repo.CreateSettlement(ctx, stl); err != nil {
			return errors.Wrap(err, "creating settlement")
		}

		stl.Items = make([]CostItem, 0, len(items))
		for _, item := range items {
			version := item.Version
			item.Status = StatusPaid
			item.PaidAt = null.TimeFrom(now)
			item.SettlementID = null.StringFrom(stl.ID)
			item.UpdatedAt = now
			if item, err = svc.Repo.UpdateCost(ctx, item, version); err != nil {
				return err
			}
			stl.Items = append(stl.Items, item)
		}
		return nil
	})
	if err != nil {
		return Settlement{}, err
	}

	svc.notifySettlement(ctx, stl, rev)
	svc.publish(ctx, core.NewEvent(core.EventSettlementCreated, admin.ID, map[string]interface{}{
		"settlement_id": stl.ID,
		"reviewer_id":   stl.ReviewerID,
		"item_count":    stl.ItemCount,
		"total":         stl.Total.StringFixed(2),
	}))
	return stl, nil
}

func (svc *Service) QuerySettlements(ctx context.Context, filter *SettlementFilter, ordering []core.DBOrdering) ([]Settlement, error) {
	return svc.Repo.QuerySettlements(ctx, filter, ordering)
}

// GetSettlement returns the Settlement along with its cost items.
func (svc *Service) GetSettlement(ctx context.Context, id string) (Settlement, error) {
	stl, err := svc.Repo.GetSettlement(ctx, id)
	if err != nil {
		return stl, err
	}
	stl.Items, err = svc.Repo.QueryCosts(ctx, &CostFilter{SettlementID: stl.ID}, []core.DBOrdering{{Field: "incurred_on", Ascending: true}})
	if err != nil {
		return stl, errors.Wrap(err, "querying settlement items")
	}
	return stl, nil
}

func (svc *Service) notifySettlement(ctx context.Context, stl Settlement, rev reviewer.Reviewer) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: rev.Name, Address: rev.Email}},
		Subject:      "Settlement statement",
		TemplateName: "settlement_created",
		TemplateData: map[string]interface{}{
			"Name":       rev.Name,
			"PeriodFrom": stl.PeriodFrom.Format(dateLayout),
			"PeriodTo":   stl.PeriodTo.Format(dateLayout),
			"ItemCount":  stl.ItemCount,
			"Total":      stl.Total.StringFixed(2),
			"Currency":   svc.Currency,
		},
	}

	var buf bytes.Buffer
	if err := svc.writeSettlement(&buf, stl, rev); err != nil {
		svc.Logger.Error("exporting settlement statement", errors.Wrap(err, "finance.notifySettlement"))
	} else {
		fname := fmt.Sprintf("settlement-%s.xlsx", stl.PeriodTo.Format("2006-01"))
		if err := msg.Attach(&buf, fname, XLSXContentType); err != nil {
			svc.Logger.Error("attaching settlement statement", errors.Wrap(err, "finance.notifySettlement"))
		}
	}
	svc.MailSvc.SendMessages(msg)
}

// publish does not fail the operation: the change is already committed.
func (svc *Service) publish(ctx context.Context, evt core.Event) {
	if err := svc.Events.Publish(ctx, evt); err != nil {
		svc.Logger.Error("publishing "+evt.Type, errors.Wrap(err, "publishing event"))
	}
}

func paidAt(status PaymentStatus) null.Time {
	if status == StatusPaid {
		return null.TimeFrom(time.Now().UTC())
	}
	return null.Time{}
}

func statusEventData(kind, id string, status PaymentStatus, version int) map[string]interface{} {
	return map[string]interface{}{
		"item_kind": kind,
		"item_id":   id,
		"status":    status,
		"version":   version,
	}
}
