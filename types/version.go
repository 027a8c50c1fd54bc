package types

// Version is the canonical agent version, reported by --version and carried
// in session notifications.
const Version = "0.4.0"

// NotifyContractVersion is the version of the session notification payload.
const NotifyContractVersion = "1.0.0"
