package export

// Edit codes used in the edit column.
const (
	EditCut      = "C"
	EditDissolve = "D"
	EditWipe     = "W001"
)

// Event is one line of an edit decision list. Source times are relative to
// the media file, record times to the project timeline; both are
// milliseconds.
type Event struct {
	Number     int
	Reel       string
	Track      string
	Edit       string
	EditFrames int
	SourceIn   int64
	SourceOut  int64
	RecordIn   int64
	RecordOut  int64
	ClipName   string
	MediaPath  string
	// Outgoing marks the zero-length line that holds the previous clip
	// where a dissolve or wipe into the next clip begins.
	Outgoing bool
}

// Request asks for the EDL to be written into OutputDir. Title defaults to
// the project name.
type Request struct {
	OutputDir string `json:"output_dir"`
	Title     string `json:"title,omitempty"`
}

type Result struct {
	Status     string `json:"status"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
	EventCount int    `json:"event_count"`
}
