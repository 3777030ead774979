package services

import (
	"context"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"testing"
)

type mockSearchesCleanup struct {
	mock.Mock
}

func (m *mockSearchesCleanup) CleanupOld(_ context.Context, maxAgeDays int) (int, error) {
	args := m.Called(maxAgeDays)
	return args.Int(0), args.Error(1)
}

func Test_NewSearchesCleaner_WhenArgumentsInvalid_ShouldFail(t *testing.T) {
	assert := assert.New(t)

	_, err := NewSearchesCleaner(&mockSearchesCleanup{}, "0 3 * * *", 0)
	assert.Error(err)

	_, err = NewSearchesCleaner(&mockSearchesCleanup{}, "every day", 30)
	assert.Error(err)
}

func Test_CleanOldSearches_ShouldPassMaxAge(t *testing.T) {
	cleanup := &mockSearchesCleanup{}
	cleanup.On("CleanupOld", 30).Return(2, nil).Once()
	cleanup.On("CleanupOld", 30).Return(0, errors.New("locked")).Once()

	cleaner, err := NewSearchesCleaner(cleanup, "0 3 * * *", 30)
	require.NoError(t, err)
	defer cleaner.Stop()

	cleaner.cleanOldSearches()
	cleaner.cleanOldSearches()

	cleanup.AssertNumberOfCalls(t, "CleanupOld", 2)
}
