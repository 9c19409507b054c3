package mocks

import (
	"context"

	"supplydocs/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockRequestRepository struct {
	mock.Mock
}

func (m *MockRequestRepository) FetchPendingDocuments(ctx context.Context) ([]model.PendingDocument, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PendingDocument), args.Error(1)
}

func (m *MockRequestRepository) UpdateStatus(ctx context.Context, requestID int, status model.RequestStatus) (bool, error) {
	args := m.Called(ctx, requestID, status)
	return args.Bool(0), args.Error(1)
}
