package mocks

import (
	"supplydocs/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) RenderSupplyDocument(doc model.SupplyDocument, template []byte) ([]byte, error) {
	args := m.Called(doc, template)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockRenderer) RenderClaimsDocument(doc model.ClaimsDocument, template []byte) ([]byte, error) {
	args := m.Called(doc, template)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
