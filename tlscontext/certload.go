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

package tlscontext

import (
	"crypto/tls"
	"fmt"
)

// LoadCertificate reads a PEM certificate chain and private key from
// disk and parses them into a *tls.Certificate. A corrupt or missing
// file must cause the caller (control.Handler, in AddFront) to reject
// the whole command rather than install a partial or stale front.
func LoadCertificate(certPath, keyPath string) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("tlscontext: loading certificate %s / key %s: %w", certPath, keyPath, err)
	}
	return &cert, nil
}
