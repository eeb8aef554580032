// Package integrity gates outbound broadcasts on the structure of their relay
// metadata. It does not verify hop signatures; relay paths carry identifiers
// only.
package integrity

import (
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/justnobody/nobody-mesh/mesh/types"
)

var log = logging.Logger("integrity")

var ErrEmptyRelayPath = xerrors.New("integrity check failed: malformed relay path")

// FeeMarkers are the currency codes recognized in a relay fee.
var FeeMarkers = []string{"SOL", "NEAR"}

// VerifyRelay accepts any intent with at least one relay hop. An unrecognized
// fee format is logged and otherwise ignored.
func VerifyRelay(pi *types.PrivacyIntent) error {
	if len(pi.RelayPath) == 0 {
		return ErrEmptyRelayPath
	}

	if pi.RelayFee != nil && !FeeRecognized(*pi.RelayFee) {
		log.Warnw("unknown relay fee format", "fee", *pi.RelayFee)
	}

	return nil
}

func FeeRecognized(fee string) bool {
	for _, m := range FeeMarkers {
		if strings.Contains(fee, m) {
			return true
		}
	}
	return false
}
