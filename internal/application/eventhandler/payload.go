// Package eventhandler contains the reactions to domain events. Handlers read
// event fields from Payload, so events received from another instance over
// Redis are handled the same way as local ones.
package eventhandler

import (
	"fmt"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

func payloadString(event shared.Event, key string) (string, error) {
	v, ok := event.Payload()[key]
	if !ok {
		return "", fmt.Errorf("%s: missing %q in payload", event.EventType(), key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: %q is %T, want string", event.EventType(), key, v)
	}
	return s, nil
}

func payloadDate(event shared.Event, key string) (time.Time, error) {
	s, err := payloadString(event, key)
	if err != nil {
		return time.Time{}, err
	}
	d, err := timeutil.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %q: %w", event.EventType(), key, err)
	}
	return d, nil
}
