package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/floroz/gavel-live/internal/adapters/memory"
	"github.com/floroz/gavel-live/internal/domain/bids"
	"github.com/floroz/gavel-live/internal/domain/clock"
	"github.com/floroz/gavel-live/internal/domain/items"
	"github.com/floroz/gavel-live/pkg/auth"
)

type apiFixture struct {
	server *httptest.Server
	ledger *memory.Ledger
	clock  *clock.Manual
	signer *auth.Signer
	open   uuid.UUID
	closed uuid.UUID
}

func newAPIFixture(t *testing.T, history bids.HistoryRepository) *apiFixture {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewManual(now)
	signer, err := auth.NewHMACSigner([]byte("test-secret"), "gavel-live-test")
	require.NoError(t, err)

	ledger := memory.NewLedger(c)
	open, closed := uuid.New(), uuid.New()
	ledger.Seed(
		items.Item{ID: open, Title: "Vintage Guitar", StartPrice: decimal.NewFromInt(100), EndAt: now.Add(time.Hour)},
		items.Item{ID: closed, Title: "Old Lamp", StartPrice: decimal.NewFromInt(10), EndAt: now.Add(-time.Minute)},
	)
	if history == nil {
		history = ledger
	}

	clockService := clock.NewService(c)
	router := NewRouter(RouterConfig{
		REST:           NewHandler(items.NewService(ledger, nil, c, nil), history, clockService, nil),
		Clock:          NewClockServiceHandler(clockService),
		History:        NewBidHistoryServiceHandler(history, nil),
		Live:           http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) }),
		Validator:      signer,
		AllowedOrigins: []string{"http://localhost:5173"},
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &apiFixture{server: server, ledger: ledger, clock: c, signer: signer, open: open, closed: closed}
}

func (f *apiFixture) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, _, err := f.signer.GenerateToken(userID, "bidder@example.com", time.Hour)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) get(t *testing.T, path string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRouter_Health(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.clock.Advance(90 * time.Second)

	resp := f.get(t, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[HealthResponse](t, resp)
	assert.Equal(t, "ok", body.Status)
	assert.InDelta(t, 90, body.Uptime, 0.001)
	assert.NotEmpty(t, body.Timestamp)
}

func TestRouter_ServerTime(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp := f.get(t, "/api/items/server-time", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[ServerTimeResponse](t, resp)
	now := f.clock.Now()
	assert.Equal(t, now.UnixMilli(), body.Timestamp)
	parsed, err := time.Parse(time.RFC3339Nano, body.ServerTime)
	require.NoError(t, err)
	assert.True(t, now.Equal(parsed))
}

func TestRouter_ListItems(t *testing.T) {
	f := newAPIFixture(t, nil)
	bidder := uuid.New()
	_, err := f.ledger.AttemptBid(context.Background(), bids.PlaceBidCommand{
		ItemID: f.open, UserID: bidder, Amount: decimal.RequireFromString("120.5"),
	})
	require.NoError(t, err)

	resp := f.get(t, "/api/items", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decode[[]ItemView](t, resp)
	require.Len(t, list, 1, "ended auctions are not listed")
	assert.Equal(t, f.open.String(), list[0].ID)
	assert.Equal(t, "100.00", list[0].StartingPrice)
	assert.Equal(t, "120.50", list[0].CurrentBid)
	require.NotNil(t, list[0].LastBidderID)
	assert.Equal(t, bidder.String(), *list[0].LastBidderID)
	assert.Equal(t, uint64(1), list[0].Version)
}

func TestRouter_GetItem(t *testing.T) {
	f := newAPIFixture(t, nil)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "open item", path: "/api/items/" + f.open.String(), wantStatus: http.StatusOK},
		{name: "ended item is still readable", path: "/api/items/" + f.closed.String(), wantStatus: http.StatusOK},
		{name: "unknown item", path: "/api/items/" + uuid.NewString(), wantStatus: http.StatusNotFound},
		{name: "malformed id", path: "/api/items/abc", wantStatus: http.StatusNotFound},
		{name: "unknown route", path: "/api/nothing", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.get(t, tt.path, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		})
	}

	t.Run("item without bids has no bidder", func(t *testing.T) {
		view := decode[ItemView](t, f.get(t, "/api/items/"+f.open.String(), nil))
		assert.Nil(t, view.LastBidderID)
		assert.Equal(t, "100.00", view.CurrentBid)
	})
}

func TestRouter_MyBids(t *testing.T) {
	f := newAPIFixture(t, nil)
	user := uuid.New()
	for _, amount := range []string{"110", "130"} {
		f.clock.Advance(time.Second)
		_, err := f.ledger.AttemptBid(context.Background(), bids.PlaceBidCommand{
			ItemID: f.open, UserID: user, Amount: decimal.RequireFromString(amount),
		})
		require.NoError(t, err)
	}

	t.Run("requires authentication", func(t *testing.T) {
		resp := f.get(t, "/api/bids/my", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decode[ErrorResponse](t, resp)
		assert.Equal(t, "Unauthorized", body.Error)
	})

	t.Run("rejects an invalid token", func(t *testing.T) {
		resp := f.get(t, "/api/bids/my", http.Header{"Authorization": {"Bearer nope"}})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("lists the caller's bids newest first", func(t *testing.T) {
		resp := f.get(t, "/api/bids/my", http.Header{"Authorization": {"Bearer " + f.token(t, user)}})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[MyBidsResponse](t, resp)
		require.Equal(t, 2, body.Count)
		assert.Equal(t, "130.00", body.Bids[0].Amount)
		assert.Equal(t, "110.00", body.Bids[1].Amount)
		assert.Equal(t, f.open.String(), body.Bids[0].Item.ID)
		assert.Equal(t, "130.00", body.Bids[1].Item.CurrentBid)
	})

	t.Run("token cookie is accepted", func(t *testing.T) {
		resp := f.get(t, "/api/bids/my", http.Header{"Cookie": {auth.TokenCookie + "=" + f.token(t, uuid.New())}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[MyBidsResponse](t, resp)
		assert.Equal(t, 0, body.Count)
		assert.NotNil(t, body.Bids)
	})
}

type failingHistory struct{}

func (failingHistory) GetBidsByUserID(context.Context, uuid.UUID) ([]*bids.HistoryEntry, error) {
	return nil, errors.New("connection reset")
}

func TestRouter_MyBids_StorageFailure(t *testing.T) {
	f := newAPIFixture(t, failingHistory{})

	resp := f.get(t, "/api/bids/my", http.Header{"Authorization": {"Bearer " + f.token(t, uuid.New())}})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "Failed to fetch user bids", body.Message)
}

func TestRouter_CORS(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp := f.get(t, "/api/items", http.Header{"Origin": {"http://localhost:5173"}})
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	resp = f.get(t, "/api/items", http.Header{"Origin": {"http://evil.example"}})
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_LiveEndpointMounted(t *testing.T) {
	f := newAPIFixture(t, nil)
	resp := f.get(t, "/ws", nil)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}

func TestClockService_Now(t *testing.T) {
	f := newAPIFixture(t, nil)
	client := connect.NewClient[emptypb.Empty, timestamppb.Timestamp](
		f.server.Client(),
		f.server.URL+ClockServiceNowProcedure,
	)

	res, err := client.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	require.NoError(t, err)
	assert.True(t, f.clock.Now().Equal(res.Msg.AsTime()))
}

func TestBidHistoryService_ListMyBids(t *testing.T) {
	f := newAPIFixture(t, nil)
	user := uuid.New()
	_, err := f.ledger.AttemptBid(context.Background(), bids.PlaceBidCommand{
		ItemID: f.open, UserID: user, Amount: decimal.NewFromInt(150),
	})
	require.NoError(t, err)

	client := connect.NewClient[emptypb.Empty, structpb.ListValue](
		f.server.Client(),
		f.server.URL+BidHistoryServiceListMyBidsProcedure,
	)

	t.Run("Unauthenticated", func(t *testing.T) {
		_, err := client.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{}))
		require.Error(t, err)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("Success", func(t *testing.T) {
		req := connect.NewRequest(&emptypb.Empty{})
		req.Header().Set("Authorization", "Bearer "+f.token(t, user))

		res, err := client.CallUnary(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, res.Msg.Values, 1)

		entry := res.Msg.Values[0].GetStructValue().AsMap()
		assert.Equal(t, "150.00", entry["amount"])
		item, ok := entry["item"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, f.open.String(), item["id"])
		assert.Equal(t, "150.00", item["currentBid"])
	})
}
