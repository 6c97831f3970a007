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

// Package control implements the reconfiguration handler: a
// single-writer command channel that mutates the routing table and
// the TLS context store while connection traffic keeps flowing.
package control

import "github.com/tlsfront/tlsfront/routetable"

// Command is the sum type of control-channel messages. Every command
// is fire-and-forget from the sender's side; Handler.Run emits a
// corresponding Status on success.
type Command interface {
	isCommand()
}

// AddFront loads front's certificate and key, installs the
// certificate under front.Hostname, and appends front to the routing
// table. If the certificate fails to load, the whole command is
// dropped with no partial installation and no Status is emitted.
type AddFront struct{ Front routetable.Front }

// RemoveFront strips entries equal to Front from the routing table.
// The installed TLS certificate for Front.Hostname is left in place,
// so an in-flight handshake keyed on that hostname's SNI still
// completes.
type RemoveFront struct{ Front routetable.Front }

// AddInstance parses Instance's address and appends it to its
// application's backend pool. A malformed address is logged and the
// command is dropped with no Status emitted.
type AddInstance struct{ Instance routetable.Instance }

// RemoveInstance parses Instance's address and strips matching
// entries from its application's backend pool.
type RemoveInstance struct{ Instance routetable.Instance }

// Stop shuts the proxy down. There is no graceful drain: in-flight
// connections are not waited on.
type Stop struct{}

func (AddFront) isCommand()       {}
func (RemoveFront) isCommand()    {}
func (AddInstance) isCommand()    {}
func (RemoveInstance) isCommand() {}
func (Stop) isCommand()           {}

// Status is the acknowledgement Handler.Run emits on the status
// channel after successfully applying a Command.
type Status int

const (
	AddedFront Status = iota
	RemovedFront
	AddedInstance
	RemovedInstance
	Stopped
)

func (s Status) String() string {
	switch s {
	case AddedFront:
		return "AddedFront"
	case RemovedFront:
		return "RemovedFront"
	case AddedInstance:
		return "AddedInstance"
	case RemovedInstance:
		return "RemovedInstance"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
