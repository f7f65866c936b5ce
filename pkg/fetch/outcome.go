package fetch

// Outcome is the result of a successful fetch.
type Outcome int

const (
	// Skipped means the stored object already matches the server's Last-Modified.
	Skipped Outcome = iota + 1
	// Downloaded means the URL was fetched for the first time.
	Downloaded
	// Replaced means a stale object was replaced by a newer one.
	Replaced
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Downloaded:
		return "downloaded"
	case Replaced:
		return "replaced"
	default:
		return "none"
	}
}

// State is a step of a single fetch.
type State int

const (
	StateStart State = iota
	StateRequestSent
	StateHeaderParsed
	StateSkip
	StateFreshDownload
	StateStaleDownload
	StatePersisted
	StateDone
)

var stateNames = [...]string{
	StateStart:         "START",
	StateRequestSent:   "REQUEST_SENT",
	StateHeaderParsed:  "HEADER_PARSED",
	StateSkip:          "SKIP",
	StateFreshDownload: "FRESH_DOWNLOAD",
	StateStaleDownload: "STALE_DOWNLOAD",
	StatePersisted:     "PERSISTED",
	StateDone:          "DONE",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}
