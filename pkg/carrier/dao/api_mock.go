package dao

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/daobooking/pkg/carrier"
)

// OrderCall records one CreateDeliveryOrder invocation on the mock.
type OrderCall struct {
	Endpoint carrier.Endpoint
	Params   OrderParams
}

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateDeliveryOrder func(ctx context.Context, endpoint carrier.Endpoint, params *OrderParams) (*OrderResponse, error)
	OnGetLabel            func(ctx context.Context, params *LabelParams) (*LabelResponse, error)

	mu         sync.Mutex
	orderCalls []OrderCall
	labelCalls []LabelParams
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// OrderCalls returns the delivery order requests seen so far, in order.
func (m *MockAPIClient) OrderCalls() []OrderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OrderCall(nil), m.orderCalls...)
}

// LabelCalls returns the label requests seen so far, in order.
func (m *MockAPIClient) LabelCalls() []LabelParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LabelParams(nil), m.labelCalls...)
}

// CreateDeliveryOrder returns a mock accepted order.
func (m *MockAPIClient) CreateDeliveryOrder(ctx context.Context, endpoint carrier.Endpoint, params *OrderParams) (*OrderResponse, error) {
	m.mu.Lock()
	m.orderCalls = append(m.orderCalls, OrderCall{Endpoint: endpoint, Params: *params})
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 503, Body: "Simulated API error"}
	}

	if m.OnCreateDeliveryOrder != nil {
		return m.OnCreateDeliveryOrder(ctx, endpoint, params)
	}

	id := uuid.New()
	return &OrderResponse{
		Status: StatusOK,
		Result: OrderResult{
			Barcode: fmt.Sprintf("00057%015d", uint64(id.ID())),
		},
	}, nil
}

// GetLabel returns a mock PDF label.
func (m *MockAPIClient) GetLabel(ctx context.Context, params *LabelParams) (*LabelResponse, error) {
	m.mu.Lock()
	m.labelCalls = append(m.labelCalls, *params)
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 503, Body: "Simulated API error"}
	}

	if m.OnGetLabel != nil {
		return m.OnGetLabel(ctx, params)
	}

	return &LabelResponse{
		ContentType: contentTypePDF,
		Data:        []byte("%PDF-1.4 mock label " + params.Barcode),
	}, nil
}

var _ APIClient = (*MockAPIClient)(nil)

// wait blocks for SimulateLatency or until ctx is done.
func (m *MockAPIClient) wait(ctx context.Context) error {
	if m.SimulateLatency <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.SimulateLatency):
		return nil
	}
}
