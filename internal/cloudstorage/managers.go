// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cloudstorage

import (
	"context"
	"fmt"
	"sync"

	"github.com/cardinalhq/songlake/internal/awsclient"
	"github.com/cardinalhq/songlake/internal/azureclient"
	"github.com/cardinalhq/songlake/internal/storageprofile"
)

// CloudManagers holds all cloud provider managers for unified access. It
// implements ClientProvider to allow callers to create storage clients without
// depending on the concrete struct. Managers are created on first use so a
// local-only run never loads cloud credentials.
type CloudManagers struct {
	awsOpts []awsclient.ManagerOption

	mu    sync.Mutex
	aws   *awsclient.Manager
	azure *azureclient.Manager
}

// Ensure CloudManagers implements ClientProvider
var _ ClientProvider = (*CloudManagers)(nil)

// NewCloudManagers creates a provider for all supported cloud providers.
func NewCloudManagers(awsOpts ...awsclient.ManagerOption) *CloudManagers {
	return &CloudManagers{awsOpts: awsOpts}
}

// AWS returns the AWS manager, creating it if needed.
func (m *CloudManagers) AWS(ctx context.Context) (*awsclient.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aws == nil {
		mgr, err := awsclient.NewManager(ctx, m.awsOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS manager: %w", err)
		}
		m.aws = mgr
	}
	return m.aws, nil
}

func (m *CloudManagers) azureManager(ctx context.Context) (*azureclient.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.azure == nil {
		mgr, err := azureclient.NewManager(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure manager: %w", err)
		}
		m.azure = mgr
	}
	return m.azure, nil
}

// NewClient creates a storage Client for the given profile.
func (m *CloudManagers) NewClient(ctx context.Context, profile storageprofile.StorageProfile) (Client, error) {
	switch profile.CloudProvider {
	case storageprofile.ProviderAWS, storageprofile.ProviderGCP, "":
		mgr, err := m.AWS(ctx)
		if err != nil {
			return nil, err
		}
		awsS3Client, err := mgr.GetS3ForProfile(ctx, profile)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return &s3Client{
			awsS3Client: awsS3Client,
			isGCP:       profile.CloudProvider == storageprofile.ProviderGCP,
		}, nil
	case storageprofile.ProviderAzure:
		mgr, err := m.azureManager(ctx)
		if err != nil {
			return nil, err
		}
		azureBlobClient, err := mgr.GetBlobForProfile(ctx, profile)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
		}
		return newAzureClientFromManager(azureBlobClient), nil
	case storageprofile.ProviderLocal:
		return &fileClient{}, nil
	default:
		return nil, fmt.Errorf("unsupported cloud provider: %s", profile.CloudProvider)
	}
}
