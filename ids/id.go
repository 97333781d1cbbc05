// Package ids implements the 128-bit UniqueID, the 64-bit ServiceID derived
// from it, and the 64-bit counter-allocated ConnID, per the wire-level
// identity contract:
// two processes that agree on the same seed bytes must always agree on the
// resulting id, across processes and across versions.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package ids

import (
	"encoding/binary"
	"fmt"

	onexxhash "github.com/OneOfOne/xxhash"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// seedHi/seedLow diversify the two halves of a seeded UniqueID so that
// FromSeed("a", "b") and FromSeed("b", "a") do not collide, and so that the
// two 64-bit halves come from genuinely distinct hash evaluations even when
// high == low.
const (
	seedHi  uint64 = 0x9E3779B97F4A7C15 // golden-ratio constant, arbitrary but fixed
	seedLow byte   = 0x5A
)

// UniqueID is a 128-bit identifier, little-endian on the wire. The null and
// full sentinels are reserved and must never be produced by Random or
// FromSeed in practice (collision probability is negligible; callers that
// must rule it out entirely should check IsNull/IsFull themselves).
type UniqueID struct {
	Hi, Lo uint64
}

func NullUniqueID() UniqueID { return UniqueID{} }
func FullUniqueID() UniqueID { return UniqueID{Hi: ^uint64(0), Lo: ^uint64(0)} }

func (u UniqueID) IsNull() bool { return u.Hi == 0 && u.Lo == 0 }
func (u UniqueID) IsFull() bool { return u.Hi == ^uint64(0) && u.Lo == ^uint64(0) }
func (u UniqueID) Equal(o UniqueID) bool { return u.Hi == o.Hi && u.Lo == o.Lo }

// String renders the id as big-endian hex text for readability in logs,
// independent of the little-endian wire layout.
func (u UniqueID) String() string {
	return fmt.Sprintf("%016x%016x", u.Hi, u.Lo)
}

// RandomUniqueID draws a cryptographically-uncorrelated-enough id. Spec does
// not require cryptographic strength, only low collision probability, so a
// standard random UUID is sufficient.
func RandomUniqueID() UniqueID {
	u := uuid.New()
	return UniqueID{
		Hi: binary.BigEndian.Uint64(u[0:8]),
		Lo: binary.BigEndian.Uint64(u[8:16]),
	}
}

// UniqueIDFromSeed deterministically derives an id from two byte-string
// seeds. This is a wire-level contract: identical seeds must always yield
// identical ids, in any process, in any version of this package.
func UniqueIDFromSeed(high, low []byte) UniqueID {
	return UniqueID{
		Hi: onexxhash.Checksum64S(high, seedHi),
		Lo: xxhash.Sum64(append([]byte{seedLow}, low...)),
	}
}

// MarshalBinary writes the id as 16 bytes, little-endian, Hi first then Lo,
// matching the WireFormat header layout's byte order.
func (u UniqueID) MarshalBinary() ([]byte, error) {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[0:8], u.Hi)
	binary.LittleEndian.PutUint64(b[8:16], u.Lo)
	return b, nil
}

func (u *UniqueID) UnmarshalBinary(b []byte) error {
	if len(b) < 16 {
		return fmt.Errorf("ids: short UniqueID buffer: %d bytes", len(b))
	}
	u.Hi = binary.LittleEndian.Uint64(b[0:8])
	u.Lo = binary.LittleEndian.Uint64(b[8:16])
	return nil
}

// ServiceID names a service type within a namespace. It is the XOR of the
// two 64-bit halves of a seeded UniqueID (see ServiceIDFromSeed); the
// WireFormat header only ever carries this 64-bit width; a 128-bit
// ServiceID is never required by the core, though implementations are
// free to widen.
type ServiceID uint64

const (
	NullServiceID ServiceID = 0
	FullServiceID ServiceID = ServiceID(^uint64(0))
)

func (s ServiceID) IsNull() bool { return s == NullServiceID }
func (s ServiceID) IsFull() bool { return s == FullServiceID }
func (s ServiceID) String() string { return fmt.Sprintf("svc-%016x", uint64(s)) }

// ServiceIDFromSeed is the ServiceID derivation contract (spec §6): both
// peers must agree on service_type_name and namespace_name; changing either
// is a breaking wire change. Both seeded halves are folded together so that
// distinct service type names within the same namespace never collapse onto
// the same sid (Hi is seeded from serviceTypeName, Lo from namespaceName).
func ServiceIDFromSeed(serviceTypeName, namespaceName string) ServiceID {
	id := UniqueIDFromSeed([]byte(serviceTypeName), []byte(namespaceName))
	return ServiceID(id.Hi ^ id.Lo)
}

// ConnID correlates an outgoing call with its response on one connection.
// Null means "one-way send, no response expected."
type ConnID uint64

const NullConnID ConnID = 0

func (c ConnID) IsNull() bool { return c == NullConnID }
func (c ConnID) String() string { return fmt.Sprintf("cid-%016x", uint64(c)) }

// Counter generates monotonically increasing ConnIDs with wraparound,
// skipping the null sentinel, and detecting reuse against a still-pending
// set (spec §9 Open Question: the source only skips null; we additionally
// refuse to hand back a cid that the caller reports as still pending).
type Counter struct {
	next uint64
}

// Next returns the next candidate cid. still is called with the candidate;
// if it reports the cid already pending, Next draws again (this can only
// happen after a full 2^64 wraparound with that many concurrently
// outstanding calls, which is not realistically reachable, but the check is
// cheap and closes the spec's open question deterministically).
func (c *Counter) Next(still func(ConnID) bool) ConnID {
	for {
		c.next++
		if c.next == uint64(NullConnID) {
			c.next++
		}
		cid := ConnID(c.next)
		if still == nil || !still(cid) {
			return cid
		}
	}
}
