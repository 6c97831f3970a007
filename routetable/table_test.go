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
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// populateLolcathost sets up three fronts on lolcatho.st at increasing
// path depth, plus an unrelated host with its own front.
func populateLolcathost(t *Table) {
	t.AddFront(Front{AppID: "app_1", Hostname: "lolcatho.st", PathBegin: "/"})
	t.AddFront(Front{AppID: "app_2", Hostname: "lolcatho.st", PathBegin: "/yolo"})
	t.AddFront(Front{AppID: "app_3", Hostname: "lolcatho.st", PathBegin: "/yolo/swag"})
	t.AddFront(Front{AppID: "app_1", Hostname: "other.domain", PathBegin: "/test"})
}

func TestFrontendFromRequestLongestPrefix(t *testing.T) {
	table := New()
	populateLolcathost(table)

	cases := []struct {
		host, uri, wantAppID string
		wantOK               bool
	}{
		{"lolcatho.st", "/", "app_1", true},
		{"lolcatho.st", "/test", "app_1", true},
		{"lolcatho.st", "/yolo/test", "app_2", true},
		{"lolcatho.st", "/yolo/swag", "app_3", true},
		{"domain", "/", "", false},
		{"other.domain", "/test", "app_1", true},
		{"other.domain", "/", "", false},
	}

	for _, c := range cases {
		front, ok := table.FrontendFromRequest(c.host, c.uri)
		assert.Equal(t, c.wantOK, ok, "host=%s uri=%s", c.host, c.uri)
		if c.wantOK {
			assert.Equal(t, c.wantAppID, front.AppID, "host=%s uri=%s", c.host, c.uri)
		}
	}
}

func TestFrontendFromRequestUnknownHost(t *testing.T) {
	table := New()
	populateLolcathost(table)
	_, ok := table.FrontendFromRequest("unknown.example", "/anything")
	assert.False(t, ok)
}

func TestAddThenRemoveExactFrontRemovesIt(t *testing.T) {
	table := New()
	front := Front{AppID: "app_1", Hostname: "a.test", PathBegin: "/"}
	table.AddFront(front)
	table.RemoveFront(front)

	_, ok := table.FrontendFromRequest("a.test", "/")
	assert.False(t, ok)
}

func TestRemoveFrontLeavesEmptyListInMap(t *testing.T) {
	// Removal is not symmetric with add: the hostname key stays
	// present with an empty list rather than being deleted.
	table := New()
	front := Front{AppID: "app_1", Hostname: "a.test", PathBegin: "/"}
	table.AddFront(front)
	table.RemoveFront(front)

	table.mu.RLock()
	fronts, ok := table.fronts["a.test"]
	table.mu.RUnlock()

	require.True(t, ok, "hostname key must still be present after removal")
	assert.Empty(t, fronts)
}

func TestCompactReclaimsEmptyHostnames(t *testing.T) {
	table := New()
	front := Front{AppID: "app_1", Hostname: "a.test", PathBegin: "/"}
	table.AddFront(front)
	table.RemoveFront(front)
	table.Compact()

	table.mu.RLock()
	_, ok := table.fronts["a.test"]
	table.mu.RUnlock()
	assert.False(t, ok)
}

func TestDuplicateFrontsArePermitted(t *testing.T) {
	table := New()
	front := Front{AppID: "app_1", Hostname: "a.test", PathBegin: "/"}
	table.AddFront(front)
	table.AddFront(front)

	table.mu.RLock()
	count := len(table.fronts["a.test"])
	table.mu.RUnlock()
	assert.Equal(t, 2, count)
}

func TestTieBreakIsLastSeenWins(t *testing.T) {
	table := New()
	table.AddFront(Front{AppID: "app_first", Hostname: "a.test", PathBegin: "/api"})
	table.AddFront(Front{AppID: "app_second", Hostname: "a.test", PathBegin: "/api"})

	front, ok := table.FrontendFromRequest("a.test", "/api/widgets")
	require.True(t, ok)
	assert.Equal(t, "app_second", front.AppID)
}

func addrFor(t *testing.T, s string) net.Addr {
	t.Helper()
	addr, err := net.ResolveTCPAddr("tcp", s)
	require.NoError(t, err)
	return addr
}

func TestAddInstanceThenRemoveRemovesExactlyOne(t *testing.T) {
	table := New()
	addr := addrFor(t, "127.0.0.1:9000")
	table.AddInstance("app_1", addr)
	table.AddInstance("app_1", addr)

	table.RemoveInstance("app_1", addr)
	table.mu.RLock()
	remaining := len(table.instances["app_1"])
	table.mu.RUnlock()
	assert.Equal(t, 1, remaining)

	table.RemoveInstance("app_1", addr)
	table.mu.RLock()
	remaining = len(table.instances["app_1"])
	table.mu.RUnlock()
	assert.Equal(t, 0, remaining)
}

func TestBackendFromRequestStripsPort(t *testing.T) {
	table := New()
	table.AddFront(Front{AppID: "app_1", Hostname: "lolcatho.st", PathBegin: "/"})
	table.AddInstance("app_1", addrFor(t, "127.0.0.1:9000"))

	backend, err := table.BackendFromRequest("lolcatho.st:8443", "/")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", backend)
}

func TestBackendFromRequestNoBackendAvailable(t *testing.T) {
	table := New()
	table.AddFront(Front{AppID: "app_1", Hostname: "lolcatho.st", PathBegin: "/"})

	_, err := table.BackendFromRequest("lolcatho.st", "/")
	assert.ErrorIs(t, err, ErrNoBackendAvailable)
}

func TestBackendFromRequestHostNotFound(t *testing.T) {
	table := New()
	_, err := table.BackendFromRequest("unknown.example", "/")
	assert.ErrorIs(t, err, ErrHostNotFound)
}

func TestBackendFromRequestNeverReturnsStaleAddress(t *testing.T) {
	// BackendFromRequest must never return an address that isn't
	// present in the app's instance list at call time.
	table := New()
	table.AddFront(Front{AppID: "app_1", Hostname: "a.test", PathBegin: "/"})
	a := addrFor(t, "127.0.0.1:9001")
	b := addrFor(t, "127.0.0.1:9002")
	table.AddInstance("app_1", a)
	table.AddInstance("app_1", b)

	for i := 0; i < 50; i++ {
		backend, err := table.BackendFromRequest("a.test", "/")
		require.NoError(t, err)
		assert.Contains(t, []string{"127.0.0.1:9001", "127.0.0.1:9002"}, backend)
	}
}

func TestLiveReconfigurationScenario(t *testing.T) {
	table := New()
	front := Front{AppID: "app_1", Hostname: "f.test", PathBegin: "/"}
	addr := addrFor(t, "127.0.0.1:9000")

	table.AddFront(front)
	table.AddInstance("app_1", addr)

	backend, err := table.BackendFromRequest("f.test", "/")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", backend)

	table.RemoveInstance("app_1", addr)
	_, err = table.BackendFromRequest("f.test", "/")
	assert.ErrorIs(t, err, ErrNoBackendAvailable)
}
