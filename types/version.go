package types

// Version is the craneview client version. Recordings and session-ended
// events carry it.
const Version = "0.1.0"
