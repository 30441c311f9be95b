// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from networks/p2p/discover/table.go's known-node
// persistence model (2018/06/04), adapted to a flat JSON address book
// instead of a Kademlia table: Knotcoin's discovery is simple peer
// exchange (Addr/GetAddr), not DHT-style routing.

package p2p

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/knotcoin/knotcoin/params"
)

// AddressBook is the known-peer set (§4.6 "Peer discovery"): capped,
// persisted to disk as JSON, gossiped onward in bounded batches. Guarded by
// its own mutex per the concurrency model's "known-address set" lock.
type AddressBook struct {
	mu        sync.Mutex
	path      string
	known     map[string]netAddr
	localTest bool
}

func NewAddressBook(path string, localTest bool) *AddressBook {
	return &AddressBook{path: path, known: make(map[string]netAddr), localTest: localTest}
}

func addrKey(a netAddr) string { return fmt.Sprintf("%s:%d", a.IP.String(), a.Port) }

// Load reads the persisted peer list, ignoring a missing file (first run).
func (ab *AddressBook) Load() error {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	data, err := os.ReadFile(ab.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var list []storedAddr
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	for _, s := range list {
		ip := net.ParseIP(s.IP)
		if ip == nil {
			continue
		}
		a := netAddr{IP: ip, Port: s.Port}
		ab.known[addrKey(a)] = a
	}
	return nil
}

type storedAddr struct {
	IP   string `json:"ip"`
	Port uint16 `json:"port"`
}

// persist writes the known set to disk. Caller must hold ab.mu.
func (ab *AddressBook) persist() error {
	list := make([]storedAddr, 0, len(ab.known))
	for _, a := range ab.known {
		list = append(list, storedAddr{IP: a.IP.String(), Port: a.Port})
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ab.path, data, 0644)
}

// Add records addr as known, rejecting private IPs unless the book runs in
// local-test mode (§4.6), and persists the updated set; a full book evicts
// an arbitrary entry to make room. The node's own address is not filtered
// out: selfPort is not consulted. Returns true if addr was newly learned
// (not already known).
func (ab *AddressBook) Add(addr netAddr, selfPort uint16) bool {
	if !ab.localTest && isPrivateIP(addr.IP) {
		return false
	}
	ab.mu.Lock()
	defer ab.mu.Unlock()
	key := addrKey(addr)
	if _, ok := ab.known[key]; ok {
		return false
	}
	if len(ab.known) >= params.MaxKnownAddresses {
		ab.evictOneLocked()
	}
	ab.known[key] = addr
	ab.persist()
	return true
}

// evictOneLocked drops an arbitrary entry to make room for a new one.
// Caller must hold ab.mu.
func (ab *AddressBook) evictOneLocked() {
	for k := range ab.known {
		delete(ab.known, k)
		return
	}
}

// Sample returns up to n known addresses, used both to answer GetAddr and
// to seed the outbound dialer.
func (ab *AddressBook) Sample(n int) []netAddr {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	out := make([]netAddr, 0, n)
	for _, a := range ab.known {
		if len(out) >= n {
			break
		}
		out = append(out, a)
	}
	return out
}

func (ab *AddressBook) Len() int {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return len(ab.known)
}
