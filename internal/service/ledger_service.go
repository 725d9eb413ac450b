package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitit/internal/calculator"
	"github.com/mmynk/splitit/internal/clock"
	"github.com/mmynk/splitit/internal/guard"
	"github.com/mmynk/splitit/internal/ledger"
	"github.com/mmynk/splitit/internal/membership"
	"github.com/mmynk/splitit/internal/middleware"
	"github.com/mmynk/splitit/internal/models"
	"github.com/mmynk/splitit/internal/notify"
	"github.com/mmynk/splitit/internal/storage"
	"github.com/mmynk/splitit/pkg/api"
	"github.com/mmynk/splitit/pkg/api/apiconnect"
)

// errInternal is all callers learn about a system fault; details are logged.
var errInternal = errors.New("something went wrong, please try again")

// inviteWarning is returned when an invitation was stored but its
// notification could not be delivered.
const inviteWarning = "invitation created, but the email could not be sent; share the join link manually"

// LedgerConfig holds the service settings that come from configuration.
type LedgerConfig struct {
	// SiteURL is the public base URL used in invitation links.
	SiteURL   string
	InviteTTL time.Duration
}

// LedgerService implements the Connect LedgerService.
type LedgerService struct {
	store    storage.Store
	notifier notify.Notifier
	clock    clock.Clock
	logger   *slog.Logger
	cfg      LedgerConfig
}

var _ apiconnect.LedgerServiceHandler = (*LedgerService)(nil)

// NewLedgerService creates a LedgerService over store. Invitations are
// delivered through notifier after their transaction commits.
func NewLedgerService(store storage.Store, notifier notify.Notifier, clk clock.Clock, logger *slog.Logger, cfg LedgerConfig) *LedgerService {
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = membership.DefaultInviteTTL
	}
	return &LedgerService{
		store:    store,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
		cfg:      cfg,
	}
}

// caller is the authenticated identity behind a request.
type caller struct {
	ID    string
	Email string
}

func callerFrom(ctx context.Context) (caller, error) {
	c := caller{ID: middleware.GetUserID(ctx), Email: middleware.GetEmail(ctx)}
	if c.ID == "" {
		return caller{}, connect.NewError(connect.CodeUnauthenticated, ledger.ErrUnauthenticated)
	}
	return c, nil
}

// run executes fn for the caller inside one store transaction.
func run[T any](ctx context.Context, s *LedgerService, fn func(ctx context.Context, tx storage.Tx, c caller) (T, error)) (T, error) {
	var value T
	c, err := callerFrom(ctx)
	if err != nil {
		return value, err
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		value, err = fn(ctx, tx, c)
		return err
	})
	return value, err
}

// result turns a command outcome into a response. Business failures
// become a failed Result; identity and system faults stay errors.
func result[T any](s *LedgerService, op string, value T, err error, attrs ...any) (*connect.Response[api.Result[T]], error) {
	if err == nil {
		s.logger.Info(op+" succeeded", attrs...)
		return connect.NewResponse(api.OK(value)), nil
	}

	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return nil, connectErr
	}
	if ledger.IsBusinessError(err) {
		s.logger.Warn(op+" rejected", append(attrs, "reason", err)...)
		return connect.NewResponse(api.Fail[T](ledger.Message(err))), nil
	}
	s.logger.Error(op+" failed", append(attrs, "error", err)...)
	return nil, connect.NewError(connect.CodeInternal, errInternal)
}

// queryError maps a query failure to a Connect error.
func (s *LedgerService) queryError(op string, err error, attrs ...any) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	code := connect.CodeInternal
	switch {
	case errors.Is(err, ledger.ErrForbidden):
		code = connect.CodePermissionDenied
	case errors.Is(err, ledger.ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, ledger.ErrInvalidInput):
		code = connect.CodeInvalidArgument
	}
	if code == connect.CodeInternal {
		s.logger.Error(op+" failed", append(attrs, "error", err)...)
		return connect.NewError(code, errInternal)
	}
	s.logger.Warn(op+" rejected", append(attrs, "reason", err)...)
	return connect.NewError(code, errors.New(ledger.Message(err)))
}

// CreateGroup creates a group with the caller as its admin.
func (s *LedgerService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.Result[api.CreateGroupValue]], error) {
	s.logger.Info("CreateGroup request received", "name", req.Msg.Name)

	v, err := run(ctx, s, func(ctx context.Context, tx storage.Tx, c caller) (api.CreateGroupValue, error) {
		group, err := membership.CreateGroup(ctx, tx, req.Msg.Name, req.Msg.Description, c.ID, s.clock.Now())
		if err != nil {
			return api.CreateGroupValue{}, err
		}
		return api.CreateGroupValue{GroupID: group.ID}, nil
	})
	return result(s, "CreateGroup", v, err, "group_id", v.GroupID)
}

// ListGroups returns every group the caller belongs to.
func (s *LedgerService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	resp, err := run(ctx, s, func(ctx context.Context, tx storage.Tx, c caller) (*api.ListGroupsResponse, error) {
		groups, err := tx.ListGroupsByUser(ctx, c.ID)
		if err != nil {
			return nil, err
		}

		out := &api.ListGroupsResponse{Groups: make([]api.GroupSummary, 0, len(groups))}
		for _, g := range groups {
			members, err := tx.ListMemberships(ctx, g.ID)
			if err != nil {
				return nil, err
			}
			summary := api.GroupSummary{
				ID:           g.ID,
				Name:         g.Name,
				Description:  g.Description,
				TotalBalance: g.TotalBalance,
				MemberCount:  len(members),
			}
			for _, m := range members {
				if m.UserID == c.ID {
					summary.UserBalance = m.Balance
					summary.Role = string(m.Role)
				}
			}
			out.Groups = append(out.Groups, summary)
		}
		return out, nil
	})
	if err != nil {
		return nil, s.queryError("ListGroups", err)
	}

	s.logger.Info("ListGroups successful", "count", len(resp.Groups))
	return connect.NewResponse(resp), nil
}

// GetGroup returns a group's members and suggested settlement transfers.
func (s *LedgerService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	groupID := req.Msg.GroupID

	resp, err := run(ctx, s, func(ctx context.Context, tx storage.Tx, c caller) (*api.GetGroupResponse, error) {
		if _, err := guard.RequireMember(ctx, tx, groupID, c.ID); err != nil {
			return nil, err
		}
		group, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return nil, ledger.NotFound(err, "group not found")
		}
		members, err := tx.ListMemberships(ctx, groupID)
		if err != nil {
			return nil, err
		}

		detail := api.GroupDetail{
			ID:                 group.ID,
			Name:               group.Name,
			Description:        group.Description,
			CreatedBy:          group.CreatedBy,
			TotalBalance:       group.TotalBalance,
			CustomSplitRatio:   group.CustomSplitRatio,
			CreatedAt:          group.CreatedAt,
			Members:            make([]api.Member, 0, len(members)),
			SuggestedTransfers: []api.Transfer{},
		}
		balances := make([]calculator.MemberBalance, 0, len(members))
		for _, m := range members {
			member := api.Member{
				UserID:   m.UserID,
				Balance:  m.Balance,
				Role:     string(m.Role),
				JoinedAt: m.JoinedAt,
			}
			if m.SplitPercent.Valid {
				p := m.SplitPercent.Decimal
				member.SplitPercent = &p
			}
			user, err := tx.GetUserByID(ctx, m.UserID)
			switch {
			case err == nil:
				member.DisplayName = user.DisplayName
				member.Email = user.Email
			case !errors.Is(err, storage.ErrNotFound):
				return nil, err
			}
			detail.Members = append(detail.Members, member)
			balances = append(balances, calculator.MemberBalance{UserID: m.UserID, Balance: m.Balance})
		}

		for _, t := range calculator.SimplifyDebts(balances) {
			detail.SuggestedTransfers = append(detail.SuggestedTransfers, api.Transfer{From: t.From, To: t.To, Amount: t.Amount})
		}
		return &api.GetGroupResponse{Group: detail}, nil
	})
	if err != nil {
		return nil, s.queryError("GetGroup", err, "group_id", groupID)
	}
	return connect.NewResponse(resp), nil
}

// AddMember admits a user directly. Admins only.
func (s *LedgerService) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.Result[api.Empty]], error) {
	msg := req.Msg
	role := models.Role(msg.Role)
	if role == "" {
		role = models.RoleMember
	}

	v, err := run(ctx, s, func(ctx context.Context, tx storage.Tx, c caller) (api.Empty, error) {
		if _, err := guard.RequireAdmin(ctx, tx, msg.GroupID, c.ID); err != nil {
			return api.Empty{}, err
		}
		return api.Empty{}, membership.AddMember(ctx, tx, msg.GroupID, msg.UserID, role, s.clock.Now())
	})
	return result(s, "AddMember", v, err, "group_id", msg.GroupID, "user_id", msg.UserID)
}

// CreateExpense records an expense paid by the caller.
func (s *LedgerService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.Result[api.CreateExpenseValue]], error) {
	msg := req.Msg
	s.logger.Info("CreateExpense request received",
		"group_id", msg.GroupID,
		"amount", msg.Amount.String(),
		"split_type", msg.SplitType,
	)

	v, err := run(ctx, s, func(ctx context.Context, tx storage.Tx, c caller) (api.CreateExpenseValue, error) {
		expense, err := s.buildExpense(ctx, tx, c, msg)
		if err != nil {
			return api.CreateExpenseValue{}, err
		}
		if err := ledger.ApplyCreate(ctx, tx, expense); err != nil {
			return api.CreateExpenseValue{}, err
		}
		return api.CreateExpenseValue{ExpenseID: expense.ID}, nil
	})
	return result(s, "CreateExpense", v, err, "group_id", msg.GroupID, "expense_id", v.ExpenseID)
}

// buildExpense validates the request and computes the expense's splits
// from the group's current membership.
func (s *LedgerService) buildExpense(ctx context.Context, tx storage.Tx, c caller, msg *api.CreateExpenseRequest) (*models.Expense, error) {
	group, err := tx.GetGroup(ctx, msg.GroupID)
	if err != nil {
		return nil, ledger.NotFound(err, "group not found")
	}
	if _, err := guard.RequireMember(ctx, tx, group.ID, c.ID); err != nil {
		return nil, err
	}

	description := strings.TrimSpace(msg.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ledger.ErrInvalidInput)
	}
	amount := calculator.RoundCents(msg.Amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ledger.ErrInvalidInput)
	}
	splitType := models.SplitType(msg.SplitType)
	if splitType == "" {
		splitType = models.SplitDefault
	}
	if !splitType.Valid() {
		return nil, fmt.Errorf("%w: split type must be default or custom", ledger.ErrInvalidInput)
	}

	memberships, err := tx.ListMemberships(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	members := make([]calculator.Member, len(memberships))
	for i, m := range memberships {
		members[i] = calculator.Member{UserID: m.UserID, SplitPercent: m.SplitPercent}
	}

	var shares []calculator.Share
	if splitType == models.SplitDefault {
		shares, err = calculator.DefaultSplits(amount, members, group.CustomSplitRatio)
	} else {
		entries := make([]calculator.Share, len(msg.Splits))
		for i, sp := range msg.Splits {
			entries[i] = calculator.Share{UserID: sp.UserID, Amount: sp.Amount}
		}
		shares, err = calculator.CustomSplits(amount, entries, members)
	}
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().Unix()
	date := msg.Date
	if date == 0 {
		date = now
	}
	expense := &models.Expense{
		GroupID:     group.ID,
		Description: description,
		Amount:      amount,
		Date:        date,
		PaidBy:      c.ID,
		SplitType:   splitType,
		Note:        strings.TrimSpace(msg.Note),
		CreatedAt:   now,
		Splits:      make([]models.Split, len(shares)),
	}
	for i, sh := range shares {
		expense.Splits[i] = models.Split{UserID: sh.UserID, Amount: sh.Amount}
	}
	return expense, nil
}

// ListExpenses returns the group's expenses, newest first. Settled
// expenses are included only when asked for.
func (s *LedgerService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	msg := req.Msg

	resp, err := run(ctx, s, func(ctx context.Context, tx storage.Tx, c caller) (*api.ListExpensesResponse, error) {
		if _, err := guard.RequireMember(ctx, tx, msg.GroupID, c.ID); err != nil {
			return nil, err
		}

		status := models.ExpenseActive
		if msg.ShowSettled {
			status = ""
		}
		expenses, err := tx.ListExpenses(ctx, msg.GroupID, status)
		if err != nil {
			return nil, err
		}
		settled, err := tx.CountExpenses(ctx, msg.GroupID, models.ExpenseSettled)
		if err != nil {
			return nil, err
		}

		out := &api.ListExpensesResponse{
			Expenses:   make([]api.Expense, 0, len(expenses)),
			HasSettled: settled > 0,
		}
		for _, e := range expenses {
			out.Expenses = append(out.Expenses, toAPIExpense(e))
		}
		return out, nil
	})
	if err != nil {
		return nil, s.queryError("ListExpenses", err, "group_id", msg.GroupID)
	}
	return connect.NewResponse(resp), nil
}

func toAPIExpense(e *models.Expense) api.Expense {
	out := api.Expense{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Description: e.Description,
		Amount:      e.Amount,
		Date:        e.Date,
		PaidBy:      e.PaidBy,
		SplitType:   string(e.SplitType),
		Note:        e.Note,
		Status:      string(e.Status),
		CreatedAt:   e.CreatedAt,
		Splits:      make([]api.Split, len(e.Splits)),
	}
	for i, sp := range e.Splits {
		out.Splits[i] = api.Split{UserID: sp.UserID, Amount: sp.Amount, Settled: sp.Settled}
	}
	return out
}

// SettleExpenseSplit marks one member's split as paid back. Only the
// expense's payer may do this.
func (s *LedgerService) SettleExpenseSplit(ctx context.Context, req *connect.Request[api.SettleExpenseSplitRequest]) (*connect.Response[api.Result[api.Empty]], error) {
	msg := req.Msg

	v, err := run(ctx, s, func(ctx context.Context, tx storage.Tx, c caller) (api.Empty, error) {
		if _, err := guard.RequireExpenseMember(ctx, tx, msg.ExpenseID, c.ID); err != nil {
			return api.Empty{}, err
		}
		return api.Empty{}, ledger.ApplySettleSplit(ctx, tx, c.ID, msg.ExpenseID, msg.MemberID)
	})
	return result(s, "SettleExpenseSplit", v, err, "expense_id", msg.ExpenseID, "member_id", msg.MemberID)
}

// SettleGroup settles every outstanding expense and zeroes all balances.
func (s *LedgerService) SettleGroup(ctx context.Context, req *connect.Request[api.SettleGroupRequest]) (*connect.Response[api.Result[api.Empty]], error) {
	groupID := req.Msg.GroupID
	cleared := 0

	v, err := run(ctx, s, func(ctx context.Context, tx storage.Tx, c caller) (api.Empty, error) {
		if _, err := guard.RequireMember(ctx, tx, groupID, c.ID); err != nil {
			return api.Empty{}, err
		}
		n, err := ledger.ApplySettleGroup(ctx, tx, groupID)
		cleared = n
		return api.Empty{}, err
	})
	return result(s, "SettleGroup", v, err, "group_id", groupID, "expenses_cleared", cleared)
}

// DeleteExpense removes an expense and reverses its balance effect.
// Only the expense's payer may do this.
func (s *LedgerService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.Result[api.Empty]], error) {
	expenseID := req.Msg.ExpenseID

	v, err := run(ctx, s, func(ctx context.Context, tx storage.Tx, c caller) (api.Empty, error) {
		if _, err := guard.RequireExpenseMember(ctx, tx, expenseID, c.ID); err != nil {
			return api.Empty{}, err
		}
		return api.Empty{}, ledger.ApplyDelete(ctx, tx, c.ID, expenseID)
	})
	return result(s, "DeleteExpense", v, err, "expense_id", expenseID)
}

// JoinGroup accepts an invitation addressed to the caller's email.
func (s *LedgerService) JoinGroup(ctx context.Context, req *connect.Request[api.JoinGroupRequest]) (*connect.Response[api.Result[api.JoinGroupValue]], error) {
	invitationID := req.Msg.InvitationID

	v, err := run(ctx, s, func(ctx context.Context, tx storage.Tx, c caller) (api.JoinGroupValue, error) {
		email := c.Email
		if email == "" {
			user, err := tx.GetUserByID(ctx, c.ID)
			if err != nil {
				return api.JoinGroupValue{}, ledger.NotFound(err, "your account has no verified email")
			}
			email = user.Email
		}
		inv, err := membership.JoinGroup(ctx, tx, c.ID, email, invitationID, s.clock.Now())
		if err != nil {
			return api.JoinGroupValue{}, err
		}
		return api.JoinGroupValue{GroupID: inv.GroupID}, nil
	})
	return result(s, "JoinGroup", v, err, "invitation_id", invitationID, "group_id", v.GroupID)
}

// UpdateSplitPercents sets every member's share of default-split
// expenses. Admins only.
func (s *LedgerService) UpdateSplitPercents(ctx context.Context, req *connect.Request[api.UpdateSplitPercentsRequest]) (*connect.Response[api.Result[api.Empty]], error) {
	msg := req.Msg
	entries := make([]membership.PercentEntry, len(msg.Entries))
	for i, e := range msg.Entries {
		entries[i] = membership.PercentEntry{UserID: e.MemberID, Percent: e.Percent}
	}

	v, err := run(ctx, s, func(ctx context.Context, tx storage.Tx, c caller) (api.Empty, error) {
		if _, err := guard.RequireAdmin(ctx, tx, msg.GroupID, c.ID); err != nil {
			return api.Empty{}, err
		}
		return api.Empty{}, membership.UpdateSplitPercents(ctx, tx, msg.GroupID, entries)
	})
	return result(s, "UpdateSplitPercents", v, err, "group_id", msg.GroupID)
}

// SendInvite creates or refreshes an invitation and delivers it. A
// delivery failure does not undo the invitation; it is reported as a
// warning on the successful result.
func (s *LedgerService) SendInvite(ctx context.Context, req *connect.Request[api.SendInviteRequest]) (*connect.Response[api.Result[api.SendInviteValue]], error) {
	msg := req.Msg

	invite, err := run(ctx, s, func(ctx context.Context, tx storage.Tx, c caller) (*membership.Invite, error) {
		return membership.GetOrCreateInvite(ctx, tx, msg.GroupID, msg.Email, c.ID, s.clock.Now(), s.cfg.InviteTTL)
	})
	if err != nil {
		return result(s, "SendInvite", api.SendInviteValue{}, err, "group_id", msg.GroupID)
	}

	inv := invite.Invitation
	v := api.SendInviteValue{InvitationID: inv.ID, ExpiresAt: inv.ExpiresAt}
	err = s.notifier.SendInvite(ctx, notify.Invite{
		To:             inv.Email,
		InvitationID:   inv.ID,
		GroupName:      invite.GroupName,
		InviterEmail:   invite.InviterEmail,
		InviterIsAdmin: invite.InviterIsAdmin,
		ExpiresAt:      time.Unix(inv.ExpiresAt, 0),
		JoinURL:        notify.JoinURL(s.cfg.SiteURL, inv.ID),
	})
	if err != nil {
		s.logger.Warn("Invite delivery failed", "invitation_id", inv.ID, "error", err)
		v.Warning = inviteWarning
	}
	return result(s, "SendInvite", v, nil, "group_id", msg.GroupID, "invitation_id", inv.ID)
}
