package recorder

import (
	"regexp"

	"github.com/getmockd/pillbox/pkg/codec"
)

// MaskedAccount replaces real account numbers in ARNs.
const MaskedAccount = "123456789012"

// arn:partition:service:region:account-id:resource
var arnAccount = regexp.MustCompile(`(arn:aws[a-z-]*:[a-zA-Z0-9-]*:[a-z0-9-]*:)\d{12}(:|/|$)`)

func maskAccounts(v codec.Value) codec.Value {
	return codec.Walk(v, func(v codec.Value) codec.Value {
		s, ok := v.(codec.String)
		if !ok {
			return nil
		}
		masked := arnAccount.ReplaceAllString(string(s), "${1}"+MaskedAccount+"${2}")
		if masked == string(s) {
			return nil
		}
		return codec.String(masked)
	})
}
