package replicas

import "github.com/google/uuid"

// testUUID returns a deterministic UUID with b in its last byte.
func testUUID(b byte) uuid.UUID {
	var u uuid.UUID
	u[15] = b

	return u
}
