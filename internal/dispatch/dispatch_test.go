package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"listingpilot/backend/internal/fillers"
	"listingpilot/backend/internal/models"
	"listingpilot/backend/internal/orchestrator"
	"listingpilot/backend/internal/page"
)

type mockPoster struct {
	mock.Mock
}

func (m *mockPoster) Post(ctx context.Context, req orchestrator.Request) models.OperationResult {
	return m.Called(req).Get(0).(models.OperationResult)
}

func TestHandle_Ping(t *testing.T) {
	p := new(mockPoster)
	res := New(p).Handle(context.Background(), Message{Action: "ping"}, "http")

	assert.Equal(t, models.OperationResult{Success: true}, res)
	p.AssertNotCalled(t, "Post", mock.Anything)
}

func TestHandle_PostVehicle(t *testing.T) {
	p := new(mockPoster)
	v := models.VehicleListing{Year: 2020, Make: "toyota", Model: "camry", Price: 18500}
	p.On("Post", orchestrator.Request{Listing: v, Source: "nats"}).
		Return(models.Succeeded(orchestrator.SuccessMessage))

	res := New(p).Handle(context.Background(), Message{Action: "postVehicle", Vehicle: &v}, "nats")

	assert.True(t, res.Success)
	assert.Equal(t, orchestrator.SuccessMessage, res.Message)
	p.AssertExpectations(t)
}

// funcFiller adapts a function to the Filler interface.
type funcFiller struct {
	name string
	fill func(ctx context.Context) models.OperationResult
}

func (f funcFiller) Name() string { return f.name }
func (f funcFiller) Fill(ctx context.Context, v models.VehicleListing) models.OperationResult {
	return f.fill(ctx)
}

func TestHandle_CallerCannotAbortRun(t *testing.T) {
	const createURL = "https://www.facebook.com/marketplace/create/vehicle"
	p, err := page.NewHTMLPage(`<html><body><form><input aria-label="Price"></form></body></html>`, page.WithURL(createURL))
	require.NoError(t, err)

	caller, disconnect := context.WithCancel(context.Background())
	var ran []string
	steps := []fillers.Filler{
		funcFiller{name: "price", fill: func(ctx context.Context) models.OperationResult {
			ran = append(ran, "price")
			disconnect()
			return models.Succeeded("Price filled")
		}},
		funcFiller{name: "year", fill: func(ctx context.Context) models.OperationResult {
			ran = append(ran, "year")
			return models.Succeeded("Year filled")
		}},
	}
	engine := orchestrator.New(p, steps, orchestrator.Options{CreateURL: createURL, CreatePath: "/marketplace/create/vehicle"}, nil)

	v := models.VehicleListing{Year: 2020, Make: "toyota", Model: "camry", Price: 18500}
	res := New(engine).Handle(caller, Message{Action: "postVehicle", Vehicle: &v}, "http")

	assert.Equal(t, models.Succeeded(orchestrator.SuccessMessage), res)
	assert.Equal(t, []string{"price", "year"}, ran)
	assert.Error(t, caller.Err())
}

// shutdownPoster triggers shutdown mid-run and records whether the run saw it.
type shutdownPoster struct {
	shutdown context.CancelFunc
	stopped  bool
}

func (p *shutdownPoster) Post(ctx context.Context, req orchestrator.Request) models.OperationResult {
	p.shutdown()
	select {
	case <-ctx.Done():
		p.stopped = true
	case <-time.After(time.Second):
	}
	return models.Failed("interrupted")
}

func TestHandle_LifetimeStopsRun(t *testing.T) {
	lifetime, shutdown := context.WithCancel(context.Background())
	p := &shutdownPoster{shutdown: shutdown}
	v := models.VehicleListing{Year: 2020, Make: "toyota", Model: "camry"}

	New(p, WithLifetime(lifetime)).Handle(context.Background(), Message{Action: "postVehicle", Vehicle: &v}, "nats")

	assert.True(t, p.stopped)
}

func TestHandle_MissingVehicle(t *testing.T) {
	p := new(mockPoster)
	res := New(p).Handle(context.Background(), Message{Action: "postVehicle"}, "sqs")

	assert.False(t, res.Success)
	assert.Equal(t, "Missing vehicle", res.Error)
	p.AssertNotCalled(t, "Post", mock.Anything)
}

func TestHandle_UnknownAction(t *testing.T) {
	res := New(new(mockPoster)).Handle(context.Background(), Message{Action: "deleteVehicle"}, "http")

	assert.False(t, res.Success)
	assert.Equal(t, "Unknown action: deleteVehicle", res.Error)
}

func TestHandleRaw(t *testing.T) {
	p := new(mockPoster)
	p.On("Post", mock.MatchedBy(func(req orchestrator.Request) bool {
		return req.Listing.VIN == "1HGCM82633A004352" && req.Source == "sqs"
	})).Return(models.Failed(orchestrator.BusyMessage))

	d := New(p)
	res := d.HandleRaw(context.Background(), []byte(`{"action":"postVehicle","vehicle":{"year":2019,"make":"honda","model":"civic","vin":"1HGCM82633A004352","price":9000}}`), "sqs")
	assert.Equal(t, orchestrator.BusyMessage, res.Error)

	res = d.HandleRaw(context.Background(), []byte(`not json`), "sqs")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Invalid message")

	p.AssertExpectations(t)
}
