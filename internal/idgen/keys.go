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

// Package idgen hands out the identifiers a run needs: surrogate keys for
// fact rows, sortable run ids, and unique part-file names.
package idgen

import (
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/sony/sonyflake"
)

// KeyGenerator produces unique positive surrogate keys. An error means no
// unique key could be produced and the caller must not make one up.
type KeyGenerator interface {
	NextID() (int64, error)
}

type SonyFlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

var _ KeyGenerator = (*SonyFlakeGenerator)(nil)

// flakeEpoch is the sonyflake start time. Keys run out about 174 years
// after it.
var flakeEpoch = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

func NewFlakeGenerator() (*SonyFlakeGenerator, error) {
	return newFlakeGenerator(flakeEpoch)
}

func newFlakeGenerator(epoch time.Time) (*SonyFlakeGenerator, error) {
	settings := sonyflake.Settings{
		StartTime: epoch,
		MachineID: machineID,
	}

	sf, err := sonyflake.New(settings)
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("failed to create Sonyflake instance")
	}
	return &SonyFlakeGenerator{sf: sf}, nil
}

// machineID uses the low 16 bits of a private IPv4 address, like sonyflake's
// default, but falls back to a hash of the hostname and pid so that hosts
// without a private address can still generate keys.
func machineID() (uint16, error) {
	if addrs, err := net.InterfaceAddrs(); err == nil {
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok || ipnet.IP.IsLoopback() {
				continue
			}
			if ip := ipnet.IP.To4(); ip != nil && ip.IsPrivate() {
				return uint16(ip[2])<<8 + uint16(ip[3]), nil
			}
		}
	}
	host, _ := os.Hostname()
	h := fnv.New32a()
	_, _ = h.Write([]byte(host))
	_, _ = h.Write([]byte{byte(os.Getpid()), byte(os.Getpid() >> 8)})
	return uint16(h.Sum32()), nil
}

// NextID returns a positive int64 that'll increase roughly in time order.
// It fails once the generator's time budget is exhausted.
func (sf *SonyFlakeGenerator) NextID() (int64, error) {
	v, err := sf.sf.NextID()
	if err != nil {
		return 0, fmt.Errorf("sonyflake: %w", err)
	}
	return int64(v), nil
}

// SequenceGenerator returns 1, 2, 3, ... and is safe for concurrent use.
type SequenceGenerator struct {
	last atomic.Int64
}

var _ KeyGenerator = (*SequenceGenerator)(nil)

func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{}
}

func (s *SequenceGenerator) NextID() (int64, error) {
	return s.last.Add(1), nil
}

const (
	StrategyFlake    = "flake"
	StrategySequence = "sequence"
)

// NewKeyGenerator returns the generator for the named strategy,
// StrategyFlake (the default) or StrategySequence.
func NewKeyGenerator(strategy string) (KeyGenerator, error) {
	switch strategy {
	case "", StrategyFlake:
		return NewFlakeGenerator()
	case StrategySequence:
		return NewSequenceGenerator(), nil
	default:
		return nil, errors.New("unknown key strategy: " + strategy)
	}
}
