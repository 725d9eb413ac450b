package api

import "github.com/shopspring/decimal"

type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type CreateGroupValue struct {
	GroupID string `json:"groupId"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []GroupSummary `json:"groups"`
}

// GroupSummary is a group as seen by one of its members.
type GroupSummary struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	TotalBalance decimal.Decimal `json:"totalBalance"`
	MemberCount  int             `json:"memberCount"`
	// UserBalance is the caller's balance in the group.
	UserBalance decimal.Decimal `json:"userBalance"`
	// Role is the caller's role in the group.
	Role string `json:"role"`
}

type GetGroupRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupResponse struct {
	Group GroupDetail `json:"group"`
}

type GroupDetail struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	CreatedBy        string          `json:"createdBy"`
	TotalBalance     decimal.Decimal `json:"totalBalance"`
	CustomSplitRatio bool            `json:"customSplitRatio"`
	CreatedAt        int64           `json:"createdAt"`
	Members          []Member        `json:"members"`
	// SuggestedTransfers settle every member balance with few payments.
	SuggestedTransfers []Transfer `json:"suggestedTransfers"`
}

type Member struct {
	UserID       string           `json:"userId"`
	DisplayName  string           `json:"displayName,omitempty"`
	Email        string           `json:"email,omitempty"`
	Balance      decimal.Decimal  `json:"balance"`
	Role         string           `json:"role"`
	SplitPercent *decimal.Decimal `json:"splitPercent,omitempty"`
	JoinedAt     int64            `json:"joinedAt"`
}

type Transfer struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type AddMemberRequest struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
	Role    string `json:"role"`
}

type CreateExpenseRequest struct {
	GroupID     string          `json:"groupId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	// SplitType is "default" or "custom". Splits are required for custom
	// and ignored for default.
	SplitType string       `json:"splitType"`
	Splits    []SplitInput `json:"splits,omitempty"`
	Note      string       `json:"note,omitempty"`
	// Date is a Unix timestamp; zero means now.
	Date int64 `json:"date,omitempty"`
}

type SplitInput struct {
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
}

type CreateExpenseValue struct {
	ExpenseID string `json:"expenseId"`
}

type ListExpensesRequest struct {
	GroupID     string `json:"groupId"`
	ShowSettled bool   `json:"showSettled"`
}

type ListExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
	// HasSettled reports whether the group has settled expenses, whether
	// or not they were included.
	HasSettled bool `json:"hasSettled"`
}

type Expense struct {
	ID          string          `json:"id"`
	GroupID     string          `json:"groupId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        int64           `json:"date"`
	PaidBy      string          `json:"paidBy"`
	SplitType   string          `json:"splitType"`
	Note        string          `json:"note,omitempty"`
	Status      string          `json:"status"`
	Splits      []Split         `json:"splits"`
	CreatedAt   int64           `json:"createdAt"`
}

type Split struct {
	UserID  string          `json:"userId"`
	Amount  decimal.Decimal `json:"amount"`
	Settled bool            `json:"settled"`
}

type SettleExpenseSplitRequest struct {
	ExpenseID string `json:"expenseId"`
	MemberID  string `json:"memberId"`
}

type SettleGroupRequest struct {
	GroupID string `json:"groupId"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
}

type JoinGroupRequest struct {
	InvitationID string `json:"invitationId"`
}

type JoinGroupValue struct {
	GroupID string `json:"groupId"`
}

type UpdateSplitPercentsRequest struct {
	GroupID string         `json:"groupId"`
	Entries []PercentEntry `json:"entries"`
}

type PercentEntry struct {
	MemberID string          `json:"memberId"`
	Percent  decimal.Decimal `json:"percent"`
}

type SendInviteRequest struct {
	GroupID string `json:"groupId"`
	Email   string `json:"email"`
}

type SendInviteValue struct {
	InvitationID string `json:"invitationId"`
	ExpiresAt    int64  `json:"expiresAt"`
	// Warning is set when the invitation was stored but could not be
	// delivered.
	Warning string `json:"warning,omitempty"`
}
