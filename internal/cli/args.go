package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/calvinalkan/cowfs/pkg/replicas"
)

var errSuperblockRequired = errors.New("superblock path required (argument or config)")

// superblockPath resolves the superblock image a command operates on:
// the first positional argument if present, the config default otherwise.
func superblockPath(cfg Config, args []string) (string, []string, error) {
	if len(args) > 0 {
		return args[0], args[1:], nil
	}

	if cfg.Superblock != "" {
		return cfg.Superblock, nil, nil
	}

	return "", nil, errSuperblockRequired
}

// parseKind maps a user-facing kind name to its DataKind.
func parseKind(s string) (replicas.DataKind, error) {
	for k := replicas.DataKind(0); k < replicas.KindCount; k++ {
		if k != replicas.KindSB && k.String() == s {
			return k, nil
		}
	}

	return 0, fmt.Errorf("unknown data kind %q (journal, btree, user, cached)", s)
}

// parseDevList parses a comma-separated device index list like "0,2,5".
func parseDevList(s string) ([]uint8, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	devs := make([]uint8, 0, len(parts))

	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("bad device index %q", p)
		}

		devs = append(devs, uint8(n))
	}

	return devs, nil
}

// parseOnlineSet parses a device list into the online bitmap Status
// expects.
func parseOnlineSet(s string) (*bitset.BitSet, error) {
	devs, err := parseDevList(s)
	if err != nil {
		return nil, err
	}

	online := bitset.New(256)
	for _, d := range devs {
		online.Set(uint(d))
	}

	return online, nil
}
