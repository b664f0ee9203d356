package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/floroz/gavel-live/internal/domain/bids"
	"github.com/floroz/gavel-live/internal/domain/clock"
	"github.com/floroz/gavel-live/pkg/auth"
)

// Fully qualified procedure names. Both services use well-known protobuf
// types, so no generated stubs are involved.
const (
	ClockServiceName      = "gavel.live.v1.ClockService"
	BidHistoryServiceName = "gavel.live.v1.BidHistoryService"

	ClockServiceNowProcedure             = "/" + ClockServiceName + "/Now"
	BidHistoryServiceListMyBidsProcedure = "/" + BidHistoryServiceName + "/ListMyBids"
)

// ClockServiceHandler answers clock reconciliation requests
type ClockServiceHandler struct {
	clock *clock.Service
}

// NewClockServiceHandler creates a new clock service handler
func NewClockServiceHandler(clockService *clock.Service) *ClockServiceHandler {
	return &ClockServiceHandler{clock: clockService}
}

// Now returns the server time
func (h *ClockServiceHandler) Now(
	_ context.Context,
	_ *connect.Request[emptypb.Empty],
) (*connect.Response[timestamppb.Timestamp], error) {
	return connect.NewResponse(timestamppb.New(h.clock.Now().ServerTime)), nil
}

// Mount returns the path prefix and handler of the service
func (h *ClockServiceHandler) Mount(opts ...connect.HandlerOption) (string, http.Handler) {
	return "/" + ClockServiceName + "/", connect.NewUnaryHandler(ClockServiceNowProcedure, h.Now, opts...)
}

// BidHistoryServiceHandler lists the caller's bids
type BidHistoryServiceHandler struct {
	history bids.HistoryRepository
	logger  *slog.Logger
}

// NewBidHistoryServiceHandler creates a new bid history service handler
func NewBidHistoryServiceHandler(history bids.HistoryRepository, logger *slog.Logger) *BidHistoryServiceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BidHistoryServiceHandler{history: history, logger: logger}
}

// ListMyBids returns the authenticated user's bids, newest first. Each
// element is a struct with the same fields as the REST history entry.
func (h *BidHistoryServiceHandler) ListMyBids(
	ctx context.Context,
	_ *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.ListValue], error) {
	// user id is guaranteed by the auth interceptor
	userID, err := uuid.Parse(auth.MustGetUserID(ctx))
	if err != nil {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid user_id in token"))
	}

	entries, err := h.history.GetBidsByUserID(ctx, userID)
	if err != nil {
		h.logger.Error("Error fetching user bids", "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("failed to fetch user bids"))
	}

	values := make([]any, len(entries))
	for i, entry := range entries {
		values[i] = bidEntryMap(newBidView(entry))
	}
	list, err := structpb.NewList(values)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(list), nil
}

// Mount returns the path prefix and handler of the service
func (h *BidHistoryServiceHandler) Mount(opts ...connect.HandlerOption) (string, http.Handler) {
	return "/" + BidHistoryServiceName + "/", connect.NewUnaryHandler(BidHistoryServiceListMyBidsProcedure, h.ListMyBids, opts...)
}

func bidEntryMap(v BidView) map[string]any {
	return map[string]any{
		"id":        v.ID,
		"amount":    v.Amount,
		"createdAt": v.CreatedAt.Format(timeLayout),
		"item": map[string]any{
			"id":             v.Item.ID,
			"title":          v.Item.Title,
			"currentBid":     v.Item.CurrentBid,
			"startingPrice":  v.Item.StartingPrice,
			"auctionEndTime": v.Item.AuctionEndTime.Format(timeLayout),
		},
	}
}
