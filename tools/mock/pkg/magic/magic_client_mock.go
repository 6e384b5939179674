package magic

import (
	"context"

	"github.com/Chandra179/magic-auth-service/pkg/magic"
	"github.com/stretchr/testify/mock"
)

type MockMetadataLookup struct {
	mock.Mock
}

func (m *MockMetadataLookup) GetMetadataByToken(ctx context.Context, didToken string) (*magic.UserMetadata, error) {
	args := m.Called(ctx, didToken)
	md, _ := args.Get(0).(*magic.UserMetadata)
	return md, args.Error(1)
}
