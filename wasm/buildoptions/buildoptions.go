package buildoptions

// IsDebugMode enables debug dumps (e.g. compiled code in hex) on the
// compilation path. Only for development of this project itself.
const IsDebugMode = false
