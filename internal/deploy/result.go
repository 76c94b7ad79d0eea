package deploy

// Result reports the outcome of a single deploy operation. It is returned
// to the caller and recorded in the event log, never persisted as state.
type Result struct {
	ServerName string `json:"server_name"`
	Success    bool   `json:"success"`

	// ConfigPath is the host configuration file that was (or would have
	// been) mutated.
	ConfigPath string `json:"config_path,omitempty"`

	// BackupPath is set iff a backup was taken before mutation.
	BackupPath string `json:"backup_path,omitempty"`

	// ErrorMessage is set iff the operation failed.
	ErrorMessage string `json:"error_message,omitempty"`

	// Command and Args are the resolved launch instruction written into
	// the configuration entry.
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
}
