package jobmodel

// Event is the tagged-variant shape streamed over SSE. The Type field is
// the discriminator; it is inlined into the same JSON object as the
// variant's own fields rather than carried as a separate SSE "event:" line,
// per the wire framing this system uses (data: <json>\n\n only).
type Event struct {
	Type string `json:"type"`

	// job_created
	JobID string `json:"jobId,omitempty"`

	// generated
	FileCount int `json:"fileCount,omitempty"`

	// log / error
	Phase   string `json:"phase,omitempty"`
	Message string `json:"message,omitempty"`

	// deployed / complete
	PreviewURL  string `json:"previewUrl,omitempty"`
	DeployedURL string `json:"deployedUrl,omitempty"`

	// complete
	Metrics *Metrics `json:"metrics,omitempty"`
}

func EventJobCreated(jobID string) Event   { return Event{Type: "job_created", JobID: jobID} }
func EventGenerating() Event               { return Event{Type: "generating"} }
func EventGenerated(fileCount int) Event   { return Event{Type: "generated", FileCount: fileCount} }
func EventScaffolding() Event              { return Event{Type: "scaffolding"} }
func EventWriting() Event                  { return Event{Type: "writing"} }
func EventInstalling() Event               { return Event{Type: "installing"} }
func EventBuilding() Event                 { return Event{Type: "building"} }
func EventDeploying() Event                { return Event{Type: "deploying"} }
func EventLog(phase, message string) Event { return Event{Type: "log", Phase: phase, Message: message} }
func EventDeployed(deployedURL string) Event {
	return Event{Type: "deployed", DeployedURL: deployedURL}
}
func EventComplete(previewURL, deployedURL string, metrics Metrics) Event {
	return Event{Type: "complete", PreviewURL: previewURL, DeployedURL: deployedURL, Metrics: &metrics}
}
func EventErrorMsg(message string) Event { return Event{Type: "error", Message: message} }
