package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitit/pkg/api"
)

// LedgerServiceName is the fully-qualified name of the LedgerService.
const LedgerServiceName = "splitit.v1.LedgerService"

// Procedure paths of the LedgerService, usable in interceptors and routing.
const (
	LedgerServiceCreateGroupProcedure         = "/" + LedgerServiceName + "/CreateGroup"
	LedgerServiceListGroupsProcedure          = "/" + LedgerServiceName + "/ListGroups"
	LedgerServiceGetGroupProcedure            = "/" + LedgerServiceName + "/GetGroup"
	LedgerServiceAddMemberProcedure           = "/" + LedgerServiceName + "/AddMember"
	LedgerServiceCreateExpenseProcedure       = "/" + LedgerServiceName + "/CreateExpense"
	LedgerServiceListExpensesProcedure        = "/" + LedgerServiceName + "/ListExpenses"
	LedgerServiceSettleExpenseSplitProcedure  = "/" + LedgerServiceName + "/SettleExpenseSplit"
	LedgerServiceSettleGroupProcedure         = "/" + LedgerServiceName + "/SettleGroup"
	LedgerServiceDeleteExpenseProcedure       = "/" + LedgerServiceName + "/DeleteExpense"
	LedgerServiceJoinGroupProcedure           = "/" + LedgerServiceName + "/JoinGroup"
	LedgerServiceUpdateSplitPercentsProcedure = "/" + LedgerServiceName + "/UpdateSplitPercents"
	LedgerServiceSendInviteProcedure          = "/" + LedgerServiceName + "/SendInvite"
)

// LedgerServiceHandler is implemented by the server side of the LedgerService.
// Commands return an api.Result; queries return their message directly.
type LedgerServiceHandler interface {
	CreateGroup(context.Context, *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.Result[api.CreateGroupValue]], error)
	ListGroups(context.Context, *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error)
	GetGroup(context.Context, *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error)
	AddMember(context.Context, *connect.Request[api.AddMemberRequest]) (*connect.Response[api.Result[api.Empty]], error)
	CreateExpense(context.Context, *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.Result[api.CreateExpenseValue]], error)
	ListExpenses(context.Context, *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error)
	SettleExpenseSplit(context.Context, *connect.Request[api.SettleExpenseSplitRequest]) (*connect.Response[api.Result[api.Empty]], error)
	SettleGroup(context.Context, *connect.Request[api.SettleGroupRequest]) (*connect.Response[api.Result[api.Empty]], error)
	DeleteExpense(context.Context, *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.Result[api.Empty]], error)
	JoinGroup(context.Context, *connect.Request[api.JoinGroupRequest]) (*connect.Response[api.Result[api.JoinGroupValue]], error)
	UpdateSplitPercents(context.Context, *connect.Request[api.UpdateSplitPercentsRequest]) (*connect.Response[api.Result[api.Empty]], error)
	SendInvite(context.Context, *connect.Request[api.SendInviteRequest]) (*connect.Response[api.Result[api.SendInviteValue]], error)
}

// NewLedgerServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	handlers := map[string]http.Handler{
		LedgerServiceCreateGroupProcedure:         connect.NewUnaryHandler(LedgerServiceCreateGroupProcedure, svc.CreateGroup, opts...),
		LedgerServiceListGroupsProcedure:          connect.NewUnaryHandler(LedgerServiceListGroupsProcedure, svc.ListGroups, opts...),
		LedgerServiceGetGroupProcedure:            connect.NewUnaryHandler(LedgerServiceGetGroupProcedure, svc.GetGroup, opts...),
		LedgerServiceAddMemberProcedure:           connect.NewUnaryHandler(LedgerServiceAddMemberProcedure, svc.AddMember, opts...),
		LedgerServiceCreateExpenseProcedure:       connect.NewUnaryHandler(LedgerServiceCreateExpenseProcedure, svc.CreateExpense, opts...),
		LedgerServiceListExpensesProcedure:        connect.NewUnaryHandler(LedgerServiceListExpensesProcedure, svc.ListExpenses, opts...),
		LedgerServiceSettleExpenseSplitProcedure:  connect.NewUnaryHandler(LedgerServiceSettleExpenseSplitProcedure, svc.SettleExpenseSplit, opts...),
		LedgerServiceSettleGroupProcedure:         connect.NewUnaryHandler(LedgerServiceSettleGroupProcedure, svc.SettleGroup, opts...),
		LedgerServiceDeleteExpenseProcedure:       connect.NewUnaryHandler(LedgerServiceDeleteExpenseProcedure, svc.DeleteExpense, opts...),
		LedgerServiceJoinGroupProcedure:           connect.NewUnaryHandler(LedgerServiceJoinGroupProcedure, svc.JoinGroup, opts...),
		LedgerServiceUpdateSplitPercentsProcedure: connect.NewUnaryHandler(LedgerServiceUpdateSplitPercentsProcedure, svc.UpdateSplitPercents, opts...),
		LedgerServiceSendInviteProcedure:          connect.NewUnaryHandler(LedgerServiceSendInviteProcedure, svc.SendInvite, opts...),
	}
	prefix := "/" + LedgerServiceName + "/"
	return prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// LedgerServiceClient is a client for the LedgerService.
type LedgerServiceClient interface {
	CreateGroup(context.Context, *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.Result[api.CreateGroupValue]], error)
	ListGroups(context.Context, *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error)
	GetGroup(context.Context, *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error)
	AddMember(context.Context, *connect.Request[api.AddMemberRequest]) (*connect.Response[api.Result[api.Empty]], error)
	CreateExpense(context.Context, *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.Result[api.CreateExpenseValue]], error)
	ListExpenses(context.Context, *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error)
	SettleExpenseSplit(context.Context, *connect.Request[api.SettleExpenseSplitRequest]) (*connect.Response[api.Result[api.Empty]], error)
	SettleGroup(context.Context, *connect.Request[api.SettleGroupRequest]) (*connect.Response[api.Result[api.Empty]], error)
	DeleteExpense(context.Context, *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.Result[api.Empty]], error)
	JoinGroup(context.Context, *connect.Request[api.JoinGroupRequest]) (*connect.Response[api.Result[api.JoinGroupValue]], error)
	UpdateSplitPercents(context.Context, *connect.Request[api.UpdateSplitPercentsRequest]) (*connect.Response[api.Result[api.Empty]], error)
	SendInvite(context.Context, *connect.Request[api.SendInviteRequest]) (*connect.Response[api.Result[api.SendInviteValue]], error)
}

// NewLedgerServiceClient constructs a client for the LedgerService. baseURL is the
// server's scheme and host, e.g. http://localhost:8080.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &ledgerServiceClient{
		createGroup:         connect.NewClient[api.CreateGroupRequest, api.Result[api.CreateGroupValue]](httpClient, baseURL+LedgerServiceCreateGroupProcedure, opts...),
		listGroups:          connect.NewClient[api.ListGroupsRequest, api.ListGroupsResponse](httpClient, baseURL+LedgerServiceListGroupsProcedure, opts...),
		getGroup:            connect.NewClient[api.GetGroupRequest, api.GetGroupResponse](httpClient, baseURL+LedgerServiceGetGroupProcedure, opts...),
		addMember:           connect.NewClient[api.AddMemberRequest, api.Result[api.Empty]](httpClient, baseURL+LedgerServiceAddMemberProcedure, opts...),
		createExpense:       connect.NewClient[api.CreateExpenseRequest, api.Result[api.CreateExpenseValue]](httpClient, baseURL+LedgerServiceCreateExpenseProcedure, opts...),
		listExpenses:        connect.NewClient[api.ListExpensesRequest, api.ListExpensesResponse](httpClient, baseURL+LedgerServiceListExpensesProcedure, opts...),
		settleExpenseSplit:  connect.NewClient[api.SettleExpenseSplitRequest, api.Result[api.Empty]](httpClient, baseURL+LedgerServiceSettleExpenseSplitProcedure, opts...),
		settleGroup:         connect.NewClient[api.SettleGroupRequest, api.Result[api.Empty]](httpClient, baseURL+LedgerServiceSettleGroupProcedure, opts...),
		deleteExpense:       connect.NewClient[api.DeleteExpenseRequest, api.Result[api.Empty]](httpClient, baseURL+LedgerServiceDeleteExpenseProcedure, opts...),
		joinGroup:           connect.NewClient[api.JoinGroupRequest, api.Result[api.JoinGroupValue]](httpClient, baseURL+LedgerServiceJoinGroupProcedure, opts...),
		updateSplitPercents: connect.NewClient[api.UpdateSplitPercentsRequest, api.Result[api.Empty]](httpClient, baseURL+LedgerServiceUpdateSplitPercentsProcedure, opts...),
		sendInvite:          connect.NewClient[api.SendInviteRequest, api.Result[api.SendInviteValue]](httpClient, baseURL+LedgerServiceSendInviteProcedure, opts...),
	}
}

type ledgerServiceClient struct {
	createGroup         *connect.Client[api.CreateGroupRequest, api.Result[api.CreateGroupValue]]
	listGroups          *connect.Client[api.ListGroupsRequest, api.ListGroupsResponse]
	getGroup            *connect.Client[api.GetGroupRequest, api.GetGroupResponse]
	addMember           *connect.Client[api.AddMemberRequest, api.Result[api.Empty]]
	createExpense       *connect.Client[api.CreateExpenseRequest, api.Result[api.CreateExpenseValue]]
	listExpenses        *connect.Client[api.ListExpensesRequest, api.ListExpensesResponse]
	settleExpenseSplit  *connect.Client[api.SettleExpenseSplitRequest, api.Result[api.Empty]]
	settleGroup         *connect.Client[api.SettleGroupRequest, api.Result[api.Empty]]
	deleteExpense       *connect.Client[api.DeleteExpenseRequest, api.Result[api.Empty]]
	joinGroup           *connect.Client[api.JoinGroupRequest, api.Result[api.JoinGroupValue]]
	updateSplitPercents *connect.Client[api.UpdateSplitPercentsRequest, api.Result[api.Empty]]
	sendInvite          *connect.Client[api.SendInviteRequest, api.Result[api.SendInviteValue]]
}

func (c *ledgerServiceClient) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.Result[api.CreateGroupValue]], error) {
	return c.createGroup.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	return c.listGroups.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	return c.getGroup.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.Result[api.Empty]], error) {
	return c.addMember.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.Result[api.CreateExpenseValue]], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) SettleExpenseSplit(ctx context.Context, req *connect.Request[api.SettleExpenseSplitRequest]) (*connect.Response[api.Result[api.Empty]], error) {
	return c.settleExpenseSplit.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) SettleGroup(ctx context.Context, req *connect.Request[api.SettleGroupRequest]) (*connect.Response[api.Result[api.Empty]], error) {
	return c.settleGroup.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.Result[api.Empty]], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) JoinGroup(ctx context.Context, req *connect.Request[api.JoinGroupRequest]) (*connect.Response[api.Result[api.JoinGroupValue]], error) {
	return c.joinGroup.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) UpdateSplitPercents(ctx context.Context, req *connect.Request[api.UpdateSplitPercentsRequest]) (*connect.Response[api.Result[api.Empty]], error) {
	return c.updateSplitPercents.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) SendInvite(ctx context.Context, req *connect.Request[api.SendInviteRequest]) (*connect.Response[api.Result[api.SendInviteValue]], error) {
	return c.sendInvite.CallUnary(ctx, req)
}
