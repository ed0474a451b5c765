package dirminify

type FileObject struct {
	Name string `json:"name"`
	Path string `json:"path"`
	// RelPath is slash separated and relative to the processed root.
	RelPath string `json:"rel_path"`
	Md5Sum  string `json:"md5sum"`
	Output  string `json:"output,omitempty"`
}

type ErroredFileObject struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	RelPath      string `json:"rel_path"`
	ErrorMessage string `json:"error_message"`
	Err          error  `json:"-"`
}

// Report is the outcome of one Process run.
type Report struct {
	RunID    string              `json:"run_id"`
	Root     string              `json:"root"`
	Checksum string              `json:"checksum"`
	State    State               `json:"state"`
	Files    []string            `json:"files"`
	Minified []FileObject        `json:"minified"`
	Skipped  []FileObject        `json:"skipped"`
	Errored  []ErroredFileObject `json:"errored"`
}
