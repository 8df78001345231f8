// Package session holds the persisted key/value session store that every
// other component reads and writes. A Store is constructed once per process
// and passed by reference; nothing in medportal reaches it as ambient state.
package session

import "strings"

// Persisted keys.
const (
	KeyAuthToken = "authToken"
	KeyUsername  = "username"
	KeyHomeData  = "homeData"
	KeyRole      = "role"
	KeyUserRole  = "userRole" // legacy/alternate role marker
	KeyPatientID = "patientId"
	KeyDoctorID  = "doctorId"
	KeyStaffID   = "staffId"
	KeyAdminID   = "adminId"
)

// IdentityKeys lists the four role-identifier slots.
var IdentityKeys = []string{KeyPatientID, KeyDoctorID, KeyStaffID, KeyAdminID}

// SessionKeys lists every key owned by the login session.
var SessionKeys = []string{
	KeyAuthToken, KeyUsername, KeyHomeData, KeyRole, KeyUserRole,
	KeyPatientID, KeyDoctorID, KeyStaffID, KeyAdminID,
}

// Store is a flat, persisted key -> string mapping.
// Empty values are treated as absent by every reader.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(keys ...string) error
	// Keys returns every stored key with the given prefix.
	Keys(prefix string) []string
}

// Notifier is implemented by stores that publish a signal whenever their
// contents may have changed. The returned cancel func releases the subscription.
type Notifier interface {
	Subscribe() (<-chan struct{}, func())
}

// Snapshot is a consistent read of every session key.
type Snapshot struct {
	Token     string
	Username  string
	HomeData  string
	Role      string
	UserRole  string
	PatientID string
	DoctorID  string
	StaffID   string
	AdminID   string
}

// Read loads a Snapshot from the store.
func Read(s Store) Snapshot {
	return Snapshot{
		Token:     Value(s, KeyAuthToken),
		Username:  Value(s, KeyUsername),
		HomeData:  Value(s, KeyHomeData),
		Role:      Value(s, KeyRole),
		UserRole:  Value(s, KeyUserRole),
		PatientID: Value(s, KeyPatientID),
		DoctorID:  Value(s, KeyDoctorID),
		StaffID:   Value(s, KeyStaffID),
		AdminID:   Value(s, KeyAdminID),
	}
}

// Value returns the trimmed value for key, or "" when absent.
func Value(s Store, key string) string {
	v, ok := s.Get(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Has reports whether key holds a non-empty value.
func Has(s Store, key string) bool {
	return Value(s, key) != ""
}

// ClearAll removes every session key and everything under historyNamespace.
func ClearAll(s Store, historyNamespace string) error {
	keys := append([]string(nil), SessionKeys...)
	if historyNamespace != "" {
		keys = append(keys, s.Keys(historyNamespace+":")...)
	}
	return s.Delete(keys...)
}
