package affiliate

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPayoutTimeout = 5 * time.Second
	DefaultNotifyTimeout = 10 * time.Second
)

// Dependencies wires the collaborators shared by the validator, the stats
// service and the engine. Nil optional fields fall back to defaults.
type Dependencies struct {
	Relationships RelationshipStore
	Config        ConfigStore
	Ledger        Ledger
	Payouts       PayoutMutator
	Pricing       PricingOracle
	Notifier      NotificationSink
	Locker        Locker
	Metrics       *Metrics

	PayoutTimeout time.Duration
	NotifyTimeout time.Duration
	Now           func() time.Time
	NewID         func() string
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Locker == nil {
		d.Locker = NewKeyedMutex()
	}
	if d.PayoutTimeout <= 0 {
		d.PayoutTimeout = DefaultPayoutTimeout
	}
	if d.NotifyTimeout <= 0 {
		d.NotifyTimeout = DefaultNotifyTimeout
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}
