package models

// ==================== Trial API DTOs ====================

// AttachTrialRequest attaches a trial session to the current user
type AttachTrialRequest struct {
	SessionToken string `json:"session_token" binding:"required"`
}

// TreeNodeView is the rendered form of a tree node
type TreeNodeView struct {
	ID              string         `json:"id"`
	Label           string         `json:"label"`
	Description     string         `json:"description,omitempty"`
	ContextValue    string         `json:"context_value"`
	HasMoreChildren bool           `json:"has_more_children"`
	Children        []TreeNodeView `json:"children,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// TrialAppResponse is returned to users querying their trial app
type TrialAppResponse struct {
	Node             TreeNodeView `json:"node"`
	State            string       `json:"state"`
	SiteName         string       `json:"site_name"`
	DefaultHostURL   string       `json:"default_host_url"`
	ManagementURL    string       `json:"management_url,omitempty"`
	MinutesLeft      int          `json:"minutes_left"`
	LastRefreshError string       `json:"last_refresh_error,omitempty"`
}

// UpdateSettingsRequest replaces the application settings of the trial app.
// Keys missing from Settings are deleted on the remote side.
type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings"`
}

// SettingsResponse lists application settings
type SettingsResponse struct {
	Settings map[string]string `json:"settings"`
}

// ==================== Management endpoint DTOs ====================

// Deployment is a deployment record reported by the management endpoint
type Deployment struct {
	ID          string `json:"id"`
	Status      int    `json:"status"`
	StatusText  string `json:"status_text"`
	AuthorEmail string `json:"author_email"`
	Author      string `json:"author"`
	Deployer    string `json:"deployer"`
	Message     string `json:"message"`
	Progress    string `json:"progress"`
	ReceivedAt  string `json:"received_time"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	LastSuccess string `json:"last_success_end_time"`
	Complete    bool   `json:"complete"`
	Active      bool   `json:"active"`
	IsTemp      bool   `json:"is_temp"`
	IsReadonly  bool   `json:"is_readonly"`
	URL         string `json:"url"`
	LogURL      string `json:"log_url"`
	SiteName    string `json:"site_name"`
}

// DeploymentLogEntry is a single line of a deployment log
type DeploymentLogEntry struct {
	ID         string `json:"id"`
	LogTime    string `json:"log_time"`
	Message    string `json:"message"`
	Type       int    `json:"type"`
	DetailsURL string `json:"details_url,omitempty"`
}

// FileEntry is a virtual file system entry
type FileEntry struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MTime    string `json:"mtime"`
	CRTime   string `json:"crtime"`
	Mime     string `json:"mime"`
	Href     string `json:"href"`
	Path     string `json:"path"`
	IsFolder bool   `json:"is_folder"`
}

// LogEntry is a recent application log line
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	PID       int    `json:"pid"`
	Message   string `json:"message"`
}
