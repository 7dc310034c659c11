package steamid

import (
	"fmt"
	"strconv"
	"strings"
)

// SteamID is an account identifier in the 64-bit space
// (universe 1, individual account, desktop instance).
type SteamID uint64

// offset between the 32-bit account id and its 64-bit form
const accountIdOffset = 76561197960265728

func FromAccountId(accountId uint32) SteamID {
	return SteamID(uint64(accountId) + accountIdOffset)
}

// FromMiniProfile converts the value of a `data-miniprofile`
// attribute (a 32-bit account id) into the 64-bit space.
func FromMiniProfile(attr string) (SteamID, error) {
	accountId, err := strconv.ParseUint(strings.TrimSpace(attr), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse miniprofile id %q: %w", attr, err)
	}
	return FromAccountId(uint32(accountId)), nil
}

func Parse(s string) (SteamID, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse steam64 %q: %w", s, err)
	}
	return SteamID(id), nil
}

func (id SteamID) AccountId() uint32 {
	return uint32(uint64(id) - accountIdOffset)
}

func (id SteamID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ProfilePath returns the canonical community profile path for the id,
// relative to the community hostname.
func (id SteamID) ProfilePath() string {
	return fmt.Sprintf("/profiles/%s/", id.String())
}
