package keysystem

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
)

// HeaderKeySystems is the request header listing the key systems a client is
// willing to use, most preferred first.
const HeaderKeySystems = "DRM-Key-Systems"

// ParseKeySystemsHeader reads an RFC 8941 List of key systems. Members may be
// strings or tokens; parameters are ignored.
//
//	"com.microsoft.playready", "com.widevine.alpha" → [com.microsoft.playready com.widevine.alpha]
//	com.widevine.alpha;q=1                           → [com.widevine.alpha]
func ParseKeySystemsHeader(header string) ([]string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, errors.New("empty " + HeaderKeySystems + " header")
	}

	list, err := httpsfv.UnmarshalList([]string{header})
	if err != nil {
		return nil, fmt.Errorf("invalid %s header: %w", HeaderKeySystems, err)
	}

	out := make([]string, 0, len(list))
	for i, member := range list {
		item, ok := member.(httpsfv.Item)
		if !ok {
			return nil, fmt.Errorf("%s member %d must be an item", HeaderKeySystems, i)
		}
		switch v := item.Value.(type) {
		case string:
			out = append(out, v)
		case httpsfv.Token:
			out = append(out, string(v))
		default:
			return nil, fmt.Errorf("%s member %d must be a string or token", HeaderKeySystems, i)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no key systems in " + HeaderKeySystems + " header")
	}
	return out, nil
}
