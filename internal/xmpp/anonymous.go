package xmpp

import (
	"errors"

	"mellium.im/sasl"
)

var errAnonymousChallenge = errors.New("sasl: unexpected challenge for ANONYMOUS")

// anonymous is the SASL ANONYMOUS mechanism. The server assigns the
// address at bind time.
var anonymous = sasl.Mechanism{
	Name: "ANONYMOUS",
	Start: func(*sasl.Negotiator) (bool, []byte, interface{}, error) {
		return false, nil, nil, nil
	},
	Next: func(*sasl.Negotiator, []byte, interface{}) (bool, []byte, interface{}, error) {
		return false, nil, nil, errAnonymousChallenge
	},
}
