package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCollectionStore is a mock implementation of port.CollectionStore.
type MockCollectionStore struct {
	mock.Mock
}

func (m *MockCollectionStore) Load(ctx context.Context, name string) ([]byte, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCollectionStore) Save(ctx context.Context, name string, data []byte) error {
	args := m.Called(ctx, name, data)
	return args.Error(0)
}
