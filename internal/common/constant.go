package common

// SyncKeyHeaderName is the HTTP header carrying the shared sync key.
// The server only checks it when a key is configured.
const SyncKeyHeaderName = "x-sync-key"

// Collection names as they appear on the wire and in both stores.
const (
	CollectionEntries  = "entries"
	CollectionPeople   = "people"
	CollectionSessions = "sessions"
)

// Collections lists every syncable collection in wire order.
var Collections = []string{CollectionEntries, CollectionPeople, CollectionSessions}

// KnownCollection reports whether name is one of the syncable collections.
func KnownCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}
