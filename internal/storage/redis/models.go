package redis

import "fleetquote/internal/pricing"

// QuoteSession is the draft state of one quoting session, kept in Redis
// while the negotiator works on it.
type QuoteSession struct {
	ClientID   int64                  `json:"client_id,omitempty"`
	Global     pricing.QuoteParams    `json:"global"`
	Vehicles   []pricing.QuoteVehicle `json:"vehicles,omitempty"`
	Adjustment *pricing.Adjustment    `json:"adjustment,omitempty"`
	Result     *pricing.Result        `json:"result,omitempty"`
	Audit      []pricing.AuditEntry   `json:"audit,omitempty"`
}

// Quote converts the session into calculation input.
func (s *QuoteSession) Quote() pricing.Quote {
	return pricing.Quote{
		ClientID: s.ClientID,
		Global:   s.Global,
		Vehicles: s.Vehicles,
	}
}
