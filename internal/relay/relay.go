package relay

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/Zachkp/folio/internal/contact"
)

// Drivers.
const (
	DriverEmailJS = "emailjs"
	DriverSMTP    = "smtp"
)

// Config selects and configures a relay.
type Config struct {
	Driver  string
	EmailJS EmailJSConfig
	SMTP    SMTPConfig
}

// New builds the dispatcher for cfg.Driver.
func New(cfg Config) (contact.Dispatcher, error) {
	switch cfg.Driver {
	case DriverEmailJS, "":
		e, err := NewEmailJS(cfg.EmailJS)
		if err != nil {
			return nil, err
		}
		return e, nil
	case DriverSMTP:
		s, err := NewSMTP(cfg.SMTP)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Newf("unknown relay driver %q", cfg.Driver)
	}
}

// Unconfigured fails every dispatch with Reason. It lets the site serve
// without relay credentials while still reporting failed submissions.
type Unconfigured struct {
	Reason error
}

// Dispatch implements contact.Dispatcher.
func (u Unconfigured) Dispatch(context.Context, contact.Fields) error {
	if u.Reason == nil {
		return errors.New("email relay not configured")
	}
	return errors.Wrap(u.Reason, "email relay not configured")
}
