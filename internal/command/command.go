// Package command implements the SMS command protocol spoken by GSM relay
// units. Encoding turns a structured intent into the exact ASCII string the
// relay firmware expects; decoding classifies a raw command string back into
// a tagged Command with a redacted, human-readable description for logging.
package command

// Category tags a command for log grouping.
type Category string

const (
	CategoryRelay    Category = "relay"
	CategorySettings Category = "settings"
	CategoryUser     Category = "user"
	CategorySystem   Category = "system"
)

// AccessMode selects who may trigger the relay by calling it.
type AccessMode string

const (
	// AccessAuthorized restricts triggering to stored caller numbers.
	AccessAuthorized AccessMode = "AUT"
	// AccessAll lets any caller knowing the password trigger the relay.
	AccessAll AccessMode = "ALL"
)

// Latch time sentinel values understood by the relay firmware.
const (
	LatchMomentary = "000"
	LatchToggle    = "999"
)

// Kind identifies the decoded command variant.
type Kind string

const (
	KindOpen           Kind = "open"
	KindClose          Kind = "close"
	KindStatus         Kind = "status"
	KindPasswordChange Kind = "password_change"
	KindUserAdd        Kind = "user_add"
	KindUserRemove     Kind = "user_remove"
	KindUserQuery      Kind = "user_query"
	KindUserQueryRange Kind = "user_query_range"
	KindAccessControl  Kind = "access_control"
	KindLatchTime      Kind = "latch_time"
	KindAdminRegister  Kind = "admin_register"
	KindUnknown        Kind = "unknown"
)

// Command is the decoded form of a raw SMS command string. Action and
// Details are display strings with the password never echoed; the typed
// fields are populated only for the kinds that carry them.
type Command struct {
	Kind     Kind
	Action   string
	Details  string
	Category Category

	// Populated per kind.
	Serial      string
	SerialEnd   string
	Phone       string
	StartTime   string
	EndTime     string
	Mode        AccessMode
	LatchTime   string
	AdminNumber string
}
