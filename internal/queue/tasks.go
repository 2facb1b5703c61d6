package queue

const (
	TypeSessionBuild = "session:build"
)

// SessionBuildPayload asks a worker to ingest the given documents and write
// the built index artifact to Location, where an API process can restore it.
type SessionBuildPayload struct {
	Paths    []string `json:"paths"`
	Location string   `json:"location"`
}
