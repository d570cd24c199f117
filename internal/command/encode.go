package command

import "strings"

// Firmware opcodes. The grammar is positional: a 4-digit password followed
// by an opcode and #-terminated fields. There is no escaping; field values
// must not contain '#'.
const (
	opOpen      = "CC"
	opClose     = "DD"
	opStatus    = "EE"
	opPassword  = "P"
	opUser      = "A"
	opUserRange = "AL"
	opLatch     = "GOT"
	opAdmin     = "TEL"
	terminator  = "#"
)

// Open encodes the open-relay command.
func Open(password string) string {
	return password + opOpen
}

// Close encodes the close-relay command.
func Close(password string) string {
	return password + opClose
}

// Status encodes the status-check command.
func Status(password string) string {
	return password + opStatus
}

// ChangePassword encodes a password change. The new password is repeated
// twice, which is the firmware's confirmation mechanism.
func ChangePassword(oldPassword, newPassword string) string {
	return oldPassword + opPassword + newPassword + newPassword + terminator
}

// AddUser encodes storing phone at the given 3-digit serial position with
// no time restriction.
func AddUser(password, serial, phone string) string {
	return password + opUser + serial + terminator + phone + terminator
}

// AddUserWithTimes encodes storing phone at the given serial position,
// valid between start and end (both 10-digit YYMMDDHHMM strings).
func AddUserWithTimes(password, serial, phone, start, end string) string {
	return AddUser(password, serial, phone) + start + terminator + end + terminator
}

// RemoveUser encodes clearing the given serial position. The doubled
// terminator distinguishes removal from a single-position query.
func RemoveUser(password, serial string) string {
	return password + opUser + serial + terminator + terminator
}

// QueryUser encodes a query of a single serial position.
func QueryUser(password, serial string) string {
	return password + opUser + serial + terminator
}

// QueryUserRange encodes a query of every position from start through end.
func QueryUserRange(password, startSerial, endSerial string) string {
	return password + opUserRange + startSerial + terminator + endSerial + terminator
}

// SetAccessControl encodes switching between authorized-only and open access.
func SetAccessControl(password string, mode AccessMode) string {
	return password + string(mode) + terminator
}

// SetLatchTime encodes the relay latch duration: "000" momentary, "999"
// toggle, anything else seconds.
func SetLatchTime(password, latch string) string {
	return password + opLatch + latch + terminator
}

// RegisterAdmin encodes registering the admin number, normalized to the
// 00-prefixed international form the firmware stores.
func RegisterAdmin(password, number string) string {
	return password + opAdmin + NormalizeAdminNumber(number) + terminator
}

// NormalizeAdminNumber converts a phone number to the relay's 00-prefixed
// international form: non-digits are stripped, one leading national "0" is
// dropped, and "00" is prepended unless already present.
func NormalizeAdminNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "0") && !strings.HasPrefix(digits, "00") {
		digits = digits[1:]
	}
	if !strings.HasPrefix(digits, "00") {
		digits = "00" + digits
	}
	return digits
}
