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

package routetable

import (
	"fmt"
	"net"
)

// Instance describes a backend socket address registered under an
// app_id, before it has been canonicalized.
type Instance struct {
	AppID     string
	IPAddress string
	Port      int
}

// Addr canonicalizes the instance to a net.Addr suitable for
// Table.AddInstance/RemoveInstance.
func (i Instance) Addr() (net.Addr, error) {
	addrString := fmt.Sprintf("%s:%d", i.IPAddress, i.Port)
	tcpAddr, err := net.ResolveTCPAddr("tcp", addrString)
	if err != nil {
		return nil, fmt.Errorf("routetable: parsing instance address %q: %w", addrString, err)
	}
	return tcpAddr, nil
}
