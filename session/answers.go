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

package session

// Canned answers are written byte-for-byte, not assembled through
// net/http's response writer, so that header order and wire format
// are exact and stable.
var (
	// NotFoundAnswer is staged when BackendFromRequest returns
	// routetable.ErrHostNotFound.
	NotFoundAnswer = []byte("HTTP/1.1 404 Not Found\r\nCache-Control: no-cache\r\nConnection: close\r\n\r\n")

	// ServiceUnavailableAnswer is staged when BackendFromRequest
	// returns routetable.ErrNoBackendAvailable, or when the dial to
	// a resolved backend address fails.
	ServiceUnavailableAnswer = []byte("HTTP/1.1 503 your application is in deployment\r\nCache-Control: no-cache\r\nConnection: close\r\n\r\n")
)
