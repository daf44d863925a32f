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

package awsclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Manager struct {
	baseCfg     aws.Config
	stsClient   *sts.Client
	sessionName string
	loadOpts    []func(*config.LoadOptions) error

	sync.RWMutex
	providers map[roleKey]aws.CredentialsProvider
	tracer    trace.Tracer
}

// ManagerOption is a functional option for configuring the Manager.
type ManagerOption func(*Manager)

func WithAssumeRoleSessionName(name string) ManagerOption {
	return func(mgr *Manager) {
		mgr.sessionName = name
	}
}

// WithStaticCredentials replaces the default credential chain with a fixed
// access key pair, as read from a dl.cfg file. Empty keys leave the default
// chain in place.
func WithStaticCredentials(accessKeyID, secretAccessKey string) ManagerOption {
	return func(mgr *Manager) {
		if accessKeyID == "" || secretAccessKey == "" {
			return
		}
		provider := credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
		mgr.loadOpts = append(mgr.loadOpts, config.WithCredentialsProvider(provider))
	}
}

// WithDefaultRegion sets the region used when neither the environment nor a
// storage profile names one.
func WithDefaultRegion(region string) ManagerOption {
	return func(mgr *Manager) {
		if region == "" {
			return
		}
		mgr.loadOpts = append(mgr.loadOpts, config.WithDefaultRegion(region))
	}
}

// NewManager initializes AWS config + a single STS client.
func NewManager(ctx context.Context, opts ...ManagerOption) (*Manager, error) {
	mgr := &Manager{
		sessionName: "songlake",
		providers:   make(map[roleKey]aws.CredentialsProvider),
		tracer:      otel.Tracer("github.com/cardinalhq/songlake/internal/awsclient"),
	}
	for _, opt := range opts {
		opt(mgr)
	}

	cfg, err := config.LoadDefaultConfig(ctx, mgr.loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	otelaws.AppendMiddlewares(&cfg.APIOptions)

	mgr.baseCfg = cfg
	mgr.stsClient = sts.NewFromConfig(cfg)
	return mgr, nil
}

// Region returns the region the base config resolved to.
func (m *Manager) Region() string {
	return m.baseCfg.Region
}

// credentialsFor returns a cached provider for the region/role pair,
// assuming the role through STS when one is given.
func (m *Manager) credentialsFor(key roleKey) aws.CredentialsProvider {
	m.RLock()
	provider, ok := m.providers[key]
	m.RUnlock()
	if ok {
		return provider
	}

	m.Lock()
	defer m.Unlock()
	if provider, ok = m.providers[key]; ok {
		return provider
	}
	if key.RoleARN == "" {
		provider = m.baseCfg.Credentials
	} else {
		p := stscreds.NewAssumeRoleProvider(m.stsClient, key.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = m.sessionName
		})
		provider = aws.NewCredentialsCache(p)
	}
	m.providers[key] = provider
	return provider
}
