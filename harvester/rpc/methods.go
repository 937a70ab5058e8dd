package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/Cogwheel-Validator/spectra-harvest/harvester/models"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/notify"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/orchestrator"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/router/brokers"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/session"
	"github.com/Cogwheel-Validator/spectra-harvest/harvester/sui"
)

const HarvesterServiceName = "harvester.v1.HarvesterService"

const (
	GetPositionProcedure       = "/" + HarvesterServiceName + "/GetPosition"
	GetRewardsProcedure        = "/" + HarvesterServiceName + "/GetRewards"
	ClaimProcedure             = "/" + HarvesterServiceName + "/Claim"
	SwapPendingProcedure       = "/" + HarvesterServiceName + "/SwapPending"
	GetStagedProcedure         = "/" + HarvesterServiceName + "/GetStaged"
	SelectRouterProcedure      = "/" + HarvesterServiceName + "/SelectRouter"
	ListNotificationsProcedure = "/" + HarvesterServiceName + "/ListNotifications"
)

// Session is the part of session.Session the API exposes.
type Session interface {
	Account() string
	Network() sui.Network
	Position() *string
	Rewards() models.RewardSnapshot
	RefreshRewards(ctx context.Context) (models.RewardSnapshot, error)
	Claim(ctx context.Context) (*session.ClaimReport, error)
	SwapPending(ctx context.Context) (models.BatchSummary, error)
	Staged() models.StagedSwapSet
	Selection() brokers.Provider
	SelectRouter(provider brokers.Provider) error
}

// NotificationSource lists retained notifications.
type NotificationSource interface {
	Since(afterID uint64) []notify.Notification
}

// HarvesterServer implements the harvester API over one session
type HarvesterServer struct {
	session       Session
	notifications NotificationSource
}

// NewHarvesterServer creates a new HarvesterServer
func NewHarvesterServer(s Session, notifications NotificationSource) *HarvesterServer {
	return &HarvesterServer{session: s, notifications: notifications}
}

// NewHarvesterServiceHandler builds the handler serving every procedure of the
// service. Mount it at the returned path.
func NewHarvesterServiceHandler(svc *HarvesterServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	readOnly := append(opts[:len(opts):len(opts)], connect.WithIdempotency(connect.IdempotencyNoSideEffects))

	mux := http.NewServeMux()
	mux.Handle(GetPositionProcedure, connect.NewUnaryHandler(GetPositionProcedure, svc.GetPosition, readOnly...))
	mux.Handle(GetRewardsProcedure, connect.NewUnaryHandler(GetRewardsProcedure, svc.GetRewards, opts...))
	mux.Handle(ClaimProcedure, connect.NewUnaryHandler(ClaimProcedure, svc.Claim, opts...))
	mux.Handle(SwapPendingProcedure, connect.NewUnaryHandler(SwapPendingProcedure, svc.SwapPending, opts...))
	mux.Handle(GetStagedProcedure, connect.NewUnaryHandler(GetStagedProcedure, svc.GetStaged, readOnly...))
	mux.Handle(SelectRouterProcedure, connect.NewUnaryHandler(SelectRouterProcedure, svc.SelectRouter, opts...))
	mux.Handle(ListNotificationsProcedure, connect.NewUnaryHandler(ListNotificationsProcedure, svc.ListNotifications, readOnly...))

	return "/" + HarvesterServiceName + "/", mux
}

func (s *HarvesterServer) GetPosition(
	ctx context.Context,
	req *connect.Request[models.GetPositionRequest],
) (*connect.Response[models.GetPositionResponse], error) {
	return connect.NewResponse(&models.GetPositionResponse{
		Account:    s.session.Account(),
		Network:    string(s.session.Network()),
		PositionID: s.session.Position(),
	}), nil
}

// GetRewards returns the cached reward snapshot, or a fresh one when asked to
// refresh. A failed refresh is an Unavailable error.
func (s *HarvesterServer) GetRewards(
	ctx context.Context,
	req *connect.Request[models.GetRewardsRequest],
) (*connect.Response[models.GetRewardsResponse], error) {
	rewards := s.session.Rewards()
	if req.Msg.Refresh {
		fresh, err := s.session.RefreshRewards(ctx)
		if err != nil {
			return nil, toConnectError(err)
		}
		rewards = fresh
	}
	return connect.NewResponse(&models.GetRewardsResponse{Rewards: rewards}), nil
}

// Claim submits a claim. In auto swap mode the response carries the summary of
// the batch that ran right after it.
func (s *HarvesterServer) Claim(
	ctx context.Context,
	req *connect.Request[models.ClaimRequest],
) (*connect.Response[models.ClaimResponse], error) {
	report, err := s.session.Claim(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	staged := report.Staged
	if staged == nil {
		staged = models.StagedSwapSet{}
	}
	return connect.NewResponse(&models.ClaimResponse{
		Digest:      report.Digest,
		ExplorerURL: report.ExplorerURL,
		Staged:      staged,
		Confirmed:   report.Confirmed,
		Summary:     report.Summary,
	}), nil
}

func (s *HarvesterServer) SwapPending(
	ctx context.Context,
	req *connect.Request[models.SwapPendingRequest],
) (*connect.Response[models.SwapPendingResponse], error) {
	summary, err := s.session.SwapPending(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&models.SwapPendingResponse{Summary: summary}), nil
}

func (s *HarvesterServer) GetStaged(
	ctx context.Context,
	req *connect.Request[models.GetStagedRequest],
) (*connect.Response[models.GetStagedResponse], error) {
	staged := s.session.Staged()
	if staged == nil {
		staged = models.StagedSwapSet{}
	}
	return connect.NewResponse(&models.GetStagedResponse{
		Provider: string(s.session.Selection()),
		Staged:   staged,
	}), nil
}

func (s *HarvesterServer) SelectRouter(
	ctx context.Context,
	req *connect.Request[models.SelectRouterRequest],
) (*connect.Response[models.SelectRouterResponse], error) {
	provider, err := brokers.ParseProvider(req.Msg.Provider)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := s.session.SelectRouter(provider); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&models.SelectRouterResponse{Provider: string(provider)}), nil
}

func (s *HarvesterServer) ListNotifications(
	ctx context.Context,
	req *connect.Request[models.ListNotificationsRequest],
) (*connect.Response[models.ListNotificationsResponse], error) {
	items := s.notifications.Since(req.Msg.AfterID)
	out := make([]models.NotificationMessage, 0, len(items))
	for _, n := range items {
		out = append(out, models.NotificationMessage{
			ID:      n.ID,
			Level:   string(n.Level),
			Message: n.Message,
			Time:    n.Time.UTC().Format(time.RFC3339),
		})
	}
	return connect.NewResponse(&models.ListNotificationsResponse{Notifications: out}), nil
}

// toConnectError maps the error taxonomy onto Connect codes
func toConnectError(err error) error {
	if errors.Is(err, session.ErrBusy) {
		return connect.NewError(connect.CodeUnavailable, err)
	}

	switch orchestrator.KindOf(err) {
	case orchestrator.KindInvalidAmount:
		return connect.NewError(connect.CodeInvalidArgument, err)
	case orchestrator.KindDiscovery:
		return connect.NewError(connect.CodeUnavailable, err)
	case orchestrator.KindClaimFailed, orchestrator.KindNoPendingSwaps:
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case orchestrator.KindNoRouteFound:
		return connect.NewError(connect.CodeNotFound, err)
	case orchestrator.KindSwapFailed:
		return connect.NewError(connect.CodeInternal, err)
	}

	Logger.Error().Err(err).Msg("Unclassified API error")
	return connect.NewError(connect.CodeInternal, fmt.Errorf("internal error: %w", err))
}
