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

// Package routetable implements the longest-prefix-wins routing table
// and the uniform-random backend pool it consults.
package routetable

import "fmt"

// Front is a routing rule: requests for Hostname whose URI starts
// with PathBegin are sent to AppID. Two fronts are equal iff every
// field is equal.
type Front struct {
	AppID     string
	Hostname  string
	PathBegin string
	Port      int
	CertPath  string
	KeyPath   string
}

func (f Front) String() string {
	return fmt.Sprintf("Front{app_id=%s, hostname=%s, path_begin=%s}", f.AppID, f.Hostname, f.PathBegin)
}

// Equal reports whether f and other describe the same front. Used by
// RemoveFront, which strips entries equal to the given descriptor.
func (f Front) Equal(other Front) bool {
	return f == other
}
