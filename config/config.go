// Copyright 2024 The tlsfront Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config decodes the TOML bootstrap file: the listener
// addresses, the default certificate, and the initial set of
// fronts/instances to seed before the reconfiguration channel takes
// over as the only way to change them.
package config

import (
	"fmt"
	"net"

	"github.com/BurntSushi/toml"

	"github.com/tlsfront/tlsfront/routetable"
)

// FrontSpec is a front as written in the bootstrap file.
type FrontSpec struct {
	AppID     string `toml:"app_id"`
	Hostname  string `toml:"hostname"`
	PathBegin string `toml:"path_begin"`
	Port      int    `toml:"port"`
	CertPath  string `toml:"cert_path"`
	KeyPath   string `toml:"key_path"`
}

// Front converts the bootstrap entry to a routetable.Front.
func (f FrontSpec) Front() routetable.Front {
	return routetable.Front{
		AppID:     f.AppID,
		Hostname:  f.Hostname,
		PathBegin: f.PathBegin,
		Port:      f.Port,
		CertPath:  f.CertPath,
		KeyPath:   f.KeyPath,
	}
}

// InstanceSpec is a backend instance as written in the bootstrap file.
type InstanceSpec struct {
	AppID     string `toml:"app_id"`
	IPAddress string `toml:"ip_address"`
	Port      int    `toml:"port"`
}

// Instance converts the bootstrap entry to a routetable.Instance.
func (i InstanceSpec) Instance() routetable.Instance {
	return routetable.Instance{AppID: i.AppID, IPAddress: i.IPAddress, Port: i.Port}
}

// Bootstrap is the on-disk TOML shape read once at startup. Nothing
// re-reads this file afterward: all further changes are runtime
// reconfiguration commands only.
type Bootstrap struct {
	// Listen is the TLS front's bind address, e.g. "0.0.0.0:443".
	Listen string `toml:"listen"`

	// AdminListen is the read-only status/metrics surface's bind
	// address. Defaults to 127.0.0.1:2019.
	AdminListen string `toml:"admin_listen"`

	// DefaultCertPath/DefaultKeyPath name the fallback certificate
	// served when a ClientHello's SNI matches nothing installed.
	DefaultCertPath string `toml:"default_cert_path"`
	DefaultKeyPath  string `toml:"default_key_path"`
	DefaultHostname string `toml:"default_hostname"`

	Fronts    []FrontSpec    `toml:"fronts"`
	Instances []InstanceSpec `toml:"instances"`
}

// Load reads and decodes the bootstrap file at path.
func Load(path string) (*Bootstrap, error) {
	var b Bootstrap
	if _, err := toml.DecodeFile(path, &b); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	if b.AdminListen == "" {
		b.AdminListen = "127.0.0.1:2019"
	}
	return &b, nil
}

// Validate reports the first structural problem found, if any: every
// instance's address must actually parse. A malformed runtime
// AddInstance command is simply dropped, but it is better to fail
// fast at startup than silently seed with an address that will never
// resolve.
func (b *Bootstrap) Validate() error {
	for _, inst := range b.Instances {
		if _, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", inst.IPAddress, inst.Port)); err != nil {
			return fmt.Errorf("config: instance for app_id %q: %w", inst.AppID, err)
		}
	}
	return nil
}
