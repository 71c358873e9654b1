package mocks

import (
	"testing"

	"go.uber.org/mock/gomock"
)

// NewMockStoreForTest creates a new mock Store for testing
func NewMockStoreForTest(t *testing.T) *MockStore {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockStore(ctrl)
}

// NewMockFetcherForTest creates a new mock Fetcher for testing
func NewMockFetcherForTest(t *testing.T) *MockFetcher {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockFetcher(ctrl)
}

// NewMockNotifierForTest creates a new mock Notifier for testing
func NewMockNotifierForTest(t *testing.T) *MockNotifier {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockNotifier(ctrl)
}

// NewMockArchiveForTest creates a new mock Archive for testing
func NewMockArchiveForTest(t *testing.T) *MockArchive {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockArchive(ctrl)
}
