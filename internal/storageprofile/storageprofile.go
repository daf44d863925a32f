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

// Package storageprofile describes how to reach the object store behind an
// input or output location.
package storageprofile

import (
	"fmt"
	"strings"
)

// Supported cloud providers. ProviderLocal is selected by file:// locations
// and is never configured directly.
const (
	ProviderAWS   = "aws"
	ProviderGCP   = "gcp"
	ProviderAzure = "azure"
	ProviderLocal = "local"
)

type StorageProfile struct {
	CloudProvider string `mapstructure:"provider" json:"cloud_provider" yaml:"cloud_provider"`
	Region        string `mapstructure:"region" json:"region" yaml:"region"`
	Role          string `mapstructure:"role" json:"role,omitempty" yaml:"role,omitempty"`
	Endpoint      string `mapstructure:"endpoint" json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	InsecureTLS   bool   `mapstructure:"insecure_tls" json:"insecure_tls,omitempty" yaml:"insecure_tls,omitempty"`
	UsePathStyle  bool   `mapstructure:"use_path_style" json:"use_path_style,omitempty" yaml:"use_path_style,omitempty"`
	AzureAccount  string `mapstructure:"azure_account" json:"azure_account,omitempty" yaml:"azure_account,omitempty"`
}

func DefaultConfig() StorageProfile {
	return StorageProfile{
		CloudProvider: ProviderAWS,
		Region:        "us-west-2",
	}
}

// Validate checks the provider name.
func (p StorageProfile) Validate() error {
	switch p.CloudProvider {
	case "", ProviderAWS, ProviderGCP, ProviderAzure:
		return nil
	default:
		return fmt.Errorf("unsupported cloud provider %q", p.CloudProvider)
	}
}

// ForScheme returns the profile to use for a location with the given URL
// scheme. s3 keeps the configured provider so GCS can be reached through
// its S3 endpoint.
func (p StorageProfile) ForScheme(scheme string) (StorageProfile, error) {
	out := p
	switch strings.ToLower(scheme) {
	case "s3", "s3a", "s3n":
		if out.CloudProvider == "" || out.CloudProvider == ProviderAzure {
			out.CloudProvider = ProviderAWS
		}
	case "azure":
		out.CloudProvider = ProviderAzure
	case "file", "":
		out.CloudProvider = ProviderLocal
	default:
		return StorageProfile{}, fmt.Errorf("unsupported location scheme %q", scheme)
	}
	return out, nil
}

// AzureEndpoint returns the blob service endpoint, deriving it from the
// storage account when no endpoint is configured.
func (p StorageProfile) AzureEndpoint() string {
	if p.Endpoint != "" {
		return p.Endpoint
	}
	if p.AzureAccount == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/", p.AzureAccount)
}
