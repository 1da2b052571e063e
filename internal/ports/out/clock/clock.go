package clock

import "time"

// Clock provides time to the application.
// Services never call time.Now directly so tests can pin "now".
type Clock interface {
	Now() time.Time
}
